package models

import (
	"time"

	"github.com/lib/pq"
)

type QueueItem struct {
	ID           int64         `db:"id" json:"id"`
	UserID       int64         `db:"user_id" json:"user_id"`
	ScheduleID   *int64        `db:"schedule_id" json:"schedule_id,omitempty"`
	ContentType  string        `db:"content_type" json:"content_type"`
	ContentRef   string        `db:"content_ref" json:"content_ref"`
	Caption      string        `db:"caption" json:"caption"`
	Title        string        `db:"title" json:"title"`
	ScheduledFor time.Time     `db:"scheduled_for" json:"scheduled_for"`
	Status       string        `db:"status" json:"status"`
	AccountIDs   pq.Int64Array `db:"account_ids" json:"account_ids"`
	Priority     int           `db:"priority" json:"priority"`
	Metadata     ItemMetadata  `db:"metadata" json:"metadata"`
	AttemptCount int           `db:"attempt_count" json:"attempt_count"`
	LastError    string        `db:"last_error" json:"last_error"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// ItemMetadata is keyed by ContentType: pooled items carry the folder set and
// selection strategy, fixed items carry nothing beyond ContentRef.
type ItemMetadata struct {
	FolderIDs  []int64 `json:"folder_ids,omitempty"`
	Strategy   string  `json:"strategy,omitempty"`
	FileCount  int     `json:"file_count,omitempty"`
	TemplateID *int64  `json:"template_id,omitempty"`
}

const (
	QueueStatusPending    = "pending"
	QueueStatusScheduled  = "scheduled"
	QueueStatusProcessing = "processing"
	QueueStatusPosted     = "posted"
	QueueStatusFailed     = "failed"
	QueueStatusCancelled  = "cancelled"
)

const (
	ContentTypeFixed  = "fixed"
	ContentTypePooled = "pooled"
	ContentTypeText   = "text"
)

var queueStatuses = map[string]struct{}{
	QueueStatusPending:    {},
	QueueStatusScheduled:  {},
	QueueStatusProcessing: {},
	QueueStatusPosted:     {},
	QueueStatusFailed:     {},
	QueueStatusCancelled:  {},
}

var contentTypes = map[string]struct{}{
	ContentTypeFixed:  {},
	ContentTypePooled: {},
	ContentTypeText:   {},
}

type queueTransition struct {
	From string
	To   string
}

// queueTransitions is the full table of legal status moves. Everything not
// listed here is rejected, terminal states have no outgoing edges.
var queueTransitions = map[queueTransition]struct{}{
	{QueueStatusPending, QueueStatusScheduled}:    {},
	{QueueStatusScheduled, QueueStatusProcessing}: {},
	{QueueStatusProcessing, QueueStatusPosted}:    {},
	{QueueStatusProcessing, QueueStatusFailed}:    {},
	{QueueStatusProcessing, QueueStatusScheduled}: {},
	{QueueStatusPending, QueueStatusCancelled}:    {},
	{QueueStatusScheduled, QueueStatusCancelled}:  {},
	{QueueStatusFailed, QueueStatusScheduled}:     {},
}

func IsQueueStatus(s string) bool {
	_, ok := queueStatuses[s]
	return ok
}

func IsContentType(s string) bool {
	_, ok := contentTypes[s]
	return ok
}

func IsTerminalStatus(s string) bool {
	return s == QueueStatusPosted || s == QueueStatusCancelled
}

func CanTransition(from, to string) bool {
	_, ok := queueTransitions[queueTransition{From: from, To: to}]
	return ok
}
