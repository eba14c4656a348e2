package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/autopost/internal/models"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
	ListByUserSince(ctx context.Context, userID int64, since time.Time) ([]*models.PostingHistory, error)
	ListByUserPlatformSince(ctx context.Context, userID int64, platform string, since time.Time) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sqlx.DB
}

func NewPostingHistoryRepository(db *sqlx.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	query := `
		INSERT INTO posting_history (user_id, item_id, account_id, platform, content_type,
			platform_post_id, error_message, engagement, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := r.db.GetContext(ctx, &id, query, ph.UserID, ph.ItemID, ph.AccountID, ph.Platform,
		ph.ContentType, ph.PlatformPostID, ph.ErrorMessage, ph.Engagement, ph.PostedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *postingHistoryRepository) ListByUserSince(ctx context.Context, userID int64, since time.Time) ([]*models.PostingHistory, error) {
	query := `
		SELECT id, user_id, item_id, account_id, platform, content_type, platform_post_id,
			error_message, engagement, posted_at, created_at
		FROM posting_history
		WHERE user_id = $1 AND posted_at >= $2
		ORDER BY posted_at ASC, id ASC
	`

	var records []*models.PostingHistory
	if err := r.db.SelectContext(ctx, &records, query, userID, since); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return records, nil
}

func (r *postingHistoryRepository) ListByUserPlatformSince(ctx context.Context, userID int64, platform string, since time.Time) ([]*models.PostingHistory, error) {
	query := `
		SELECT id, user_id, item_id, account_id, platform, content_type, platform_post_id,
			error_message, engagement, posted_at, created_at
		FROM posting_history
		WHERE user_id = $1 AND platform = $2 AND posted_at >= $3
		ORDER BY posted_at ASC, id ASC
	`

	var records []*models.PostingHistory
	if err := r.db.SelectContext(ctx, &records, query, userID, platform, since); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return records, nil
}
