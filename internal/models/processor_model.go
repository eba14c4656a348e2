package models

import "time"

// ProcessorState is the single shared row recording whether a bulk processor
// run is in flight. It lives in the same store as queue items so that
// multiple server instances agree on it.
type ProcessorState struct {
	ID            int64      `db:"id" json:"id"`
	IsRunning     bool       `db:"is_running" json:"is_running"`
	RunID         string     `db:"run_id" json:"run_id"`
	LastRunAt     *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	LastHeartbeat *time.Time `db:"last_heartbeat" json:"last_heartbeat,omitempty"`
	ItemsLastRun  int        `db:"items_last_run" json:"items_last_run"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
