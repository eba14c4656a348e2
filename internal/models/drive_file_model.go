package models

import "time"

// DriveFile is one pooled content candidate. Only available, non-blacklisted
// files are eligible for selection.
type DriveFile struct {
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	FolderID    int64      `db:"folder_id" json:"folder_id"`
	FileName    string     `db:"file_name" json:"file_name"`
	FileType    string     `db:"file_type" json:"file_type"`
	FileURL     string     `db:"file_url" json:"file_url"`
	Available   bool       `db:"available" json:"available"`
	Blacklisted bool       `db:"blacklisted" json:"blacklisted"`
	UseCount    int        `db:"use_count" json:"use_count"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

const (
	SelectionStrategyRandom     = "random"
	SelectionStrategyLRU        = "least_recently_used"
	SelectionStrategyRoundRobin = "round_robin"
)

var selectionStrategies = map[string]struct{}{
	SelectionStrategyRandom:     {},
	SelectionStrategyLRU:        {},
	SelectionStrategyRoundRobin: {},
}

func IsSelectionStrategy(s string) bool {
	_, ok := selectionStrategies[s]
	return ok
}
