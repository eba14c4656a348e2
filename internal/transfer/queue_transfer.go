package transfer

import (
	"fmt"
	"time"

	"github.com/maheshrc27/autopost/internal/models"
)

type QueueItemCreation struct {
	ContentType  string              `json:"content_type"`
	ContentRef   string              `json:"content_ref"`
	Caption      string              `json:"caption"`
	Title        string              `json:"title"`
	ScheduledFor string              `json:"scheduled_for"`
	AccountIDs   []int64             `json:"account_ids"`
	Priority     int                 `json:"priority"`
	Metadata     models.ItemMetadata `json:"metadata"`
}

// QueueItemFilter is AND-combined; empty fields do not restrict.
type QueueItemFilter struct {
	Statuses   []string
	From       *time.Time
	To         *time.Time
	AccountIDs []int64
}

type BulkStatusUpdate struct {
	IDs    []int64 `json:"ids"`
	Status string  `json:"status"`
}

type QueueStatus struct {
	Counts          map[string]int `json:"counts"`
	IsHealthy       bool           `json:"is_healthy"`
	Diagnosis       []string       `json:"diagnosis"`
	StaleProcessing int            `json:"stale_processing"`
}

type ProcessorStatus struct {
	IsRunning             bool       `json:"is_running"`
	LastRunAt             *time.Time `json:"last_run_at,omitempty"`
	ItemsProcessedLastRun int        `json:"items_processed_last_run"`
}

type ProcessRunSummary struct {
	RunID    string `json:"run_id"`
	Claimed  int    `json:"claimed"`
	Posted   int    `json:"posted"`
	Requeued int    `json:"requeued"`
	Failed   int    `json:"failed"`
	Skipped  int    `json:"skipped"`
}

func (s *ProcessRunSummary) String() string {
	return fmt.Sprintf("run %s: claimed=%d posted=%d requeued=%d failed=%d skipped=%d",
		s.RunID, s.Claimed, s.Posted, s.Requeued, s.Failed, s.Skipped)
}
