package transfer

import (
	"time"

	"github.com/maheshrc27/autopost/internal/models"
)

type ScheduleCreation struct {
	Name            string              `json:"name"`
	ScheduleType    string              `json:"schedule_type"`
	Slots           []models.TimeSlot   `json:"slots"`
	DaysOfWeek      []int               `json:"days_of_week"`
	SourceType      string              `json:"source_type"`
	SourceConfig    models.SourceConfig `json:"source_config"`
	AccountIDs      []int64             `json:"account_ids"`
	TemplateID      *int64              `json:"template_id"`
	MaxPostsPerDay  int                 `json:"max_posts_per_day"`
	MinHoursBetween int                 `json:"min_hours_between_posts"`
}

// SchedulePreview is the deterministic expansion of a schedule over a
// horizon. PerDay is keyed by the slot-local calendar date (2006-01-02).
type SchedulePreview struct {
	Timestamps []time.Time    `json:"timestamps"`
	PerDay     map[string]int `json:"per_day"`
	Total      int            `json:"total"`
}

type SlotSuggestion struct {
	Slot  models.TimeSlot `json:"slot"`
	Score float64         `json:"score"`
}
