package models

import (
	"time"

	"github.com/lib/pq"
)

type Schedule struct {
	ID              int64         `db:"id" json:"id"`
	UserID          int64         `db:"user_id" json:"user_id"`
	Name            string        `db:"name" json:"name"`
	ScheduleType    string        `db:"schedule_type" json:"schedule_type"`
	Slots           []TimeSlot    `db:"slots" json:"slots"`
	DaysOfWeek      []int         `db:"days_of_week" json:"days_of_week"` // empty = every day
	SourceType      string        `db:"source_type" json:"source_type"`
	SourceConfig    SourceConfig  `db:"source_config" json:"source_config"`
	AccountIDs      pq.Int64Array `db:"account_ids" json:"account_ids"`
	TemplateID      *int64        `db:"template_id" json:"template_id,omitempty"`
	MaxPostsPerDay  int           `db:"max_posts_per_day" json:"max_posts_per_day"` // 0 = unlimited
	MinHoursBetween int           `db:"min_hours_between_posts" json:"min_hours_between_posts"`
	IsActive        bool          `db:"is_active" json:"is_active"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// TimeSlot is a local wall-clock posting time. Each slot resolves to an
// absolute instant through its own timezone.
type TimeSlot struct {
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Timezone string `json:"timezone"`
}

// SourceConfig is keyed by Schedule.SourceType: drive_pool schedules carry
// folder ids and a selection strategy, fixed_media carries a file id, text
// carries only the caption.
type SourceConfig struct {
	FolderIDs []int64 `json:"folder_ids,omitempty"`
	Strategy  string  `json:"strategy,omitempty"`
	FileID    *int64  `json:"file_id,omitempty"`
	Caption   string  `json:"caption,omitempty"`
	Title     string  `json:"title,omitempty"`
}

const (
	ScheduleTypeRecurring = "recurring"

	SourceTypeDrivePool  = "drive_pool"
	SourceTypeFixedMedia = "fixed_media"
	SourceTypeText       = "text"
)

var sourceTypes = map[string]struct{}{
	SourceTypeDrivePool:  {},
	SourceTypeFixedMedia: {},
	SourceTypeText:       {},
}

func IsSourceType(s string) bool {
	_, ok := sourceTypes[s]
	return ok
}

// ContentType returns the queue item content type a schedule's source
// materializes into.
func (s *Schedule) ContentType() string {
	switch s.SourceType {
	case SourceTypeDrivePool:
		return ContentTypePooled
	case SourceTypeFixedMedia:
		return ContentTypeFixed
	default:
		return ContentTypeText
	}
}
