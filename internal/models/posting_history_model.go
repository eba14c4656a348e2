package models

import "time"

type PostingHistory struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	ItemID         int64     `db:"item_id" json:"item_id"`
	AccountID      int64     `db:"account_id" json:"account_id"`
	Platform       string    `db:"platform" json:"platform"`
	ContentType    string    `db:"content_type" json:"content_type"`
	PlatformPostID string    `db:"platform_post_id" json:"platform_post_id"`
	ErrorMessage   string    `db:"error_message" json:"error_message"`
	Engagement     float64   `db:"engagement" json:"engagement"`
	PostedAt       time.Time `db:"posted_at" json:"posted_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Success reports whether the attempt actually reached the platform.
func (ph *PostingHistory) Success() bool {
	return ph.ErrorMessage == ""
}
