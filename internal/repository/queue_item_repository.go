package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type QueueItemRepository interface {
	Create(ctx context.Context, tx *sql.Tx, item *models.QueueItem) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.QueueItem, error)
	ListByUserID(ctx context.Context, userID int64, filter *transfer.QueueItemFilter) ([]*models.QueueItem, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.QueueItem, error)
	PromoteDuePending(ctx context.Context, now time.Time) (int64, error)
	Claim(ctx context.Context, id int64) (bool, error)
	MarkPosted(ctx context.Context, id int64, usedFileIDs []int64) error
	MarkFailed(ctx context.Context, id int64, lastError string) (bool, error)
	Reschedule(ctx context.Context, id int64, at time.Time) (bool, error)
	RetryFailed(ctx context.Context, id int64) (bool, error)
	BulkUpdateStatus(ctx context.Context, userID int64, ids []int64, target string) error
	CountByStatus(ctx context.Context, userID int64) (map[string]int, error)
	CountStaleProcessing(ctx context.Context, userID int64, cutoff time.Time) (int, error)
	ExistsForScheduleAt(ctx context.Context, scheduleID int64, at time.Time) (bool, error)
	CancelPendingBySchedule(ctx context.Context, scheduleID int64) (int64, error)
}

type queueItemRepository struct {
	db *sql.DB
}

func NewQueueItemRepository(db *sql.DB) QueueItemRepository {
	return &queueItemRepository{db: db}
}

const queueItemColumns = `id, user_id, schedule_id, content_type, content_ref, caption, title,
	scheduled_for, status, account_ids, priority, metadata, attempt_count, last_error,
	created_at, updated_at`

func scanQueueItem(row interface{ Scan(...any) error }) (*models.QueueItem, error) {
	var item models.QueueItem
	var metadata []byte
	err := row.Scan(&item.ID, &item.UserID, &item.ScheduleID, &item.ContentType, &item.ContentRef,
		&item.Caption, &item.Title, &item.ScheduledFor, &item.Status, &item.AccountIDs,
		&item.Priority, &metadata, &item.AttemptCount, &item.LastError,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &item.Metadata); err != nil {
			return nil, err
		}
	}
	return &item, nil
}

func (r *queueItemRepository) Create(ctx context.Context, tx *sql.Tx, item *models.QueueItem) (int64, error) {
	query := `
		INSERT INTO queue_items (user_id, schedule_id, content_type, content_ref, caption, title,
			scheduled_for, status, account_ids, priority, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	args := []any{item.UserID, item.ScheduleID, item.ContentType, item.ContentRef, item.Caption,
		item.Title, item.ScheduledFor, item.Status, item.AccountIDs, item.Priority, metadata}

	var id int64
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *queueItemRepository) GetByID(ctx context.Context, id int64) (*models.QueueItem, error) {
	query := `SELECT ` + queueItemColumns + ` FROM queue_items WHERE id = $1`
	item, err := scanQueueItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return item, nil
}

func (r *queueItemRepository) ListByUserID(ctx context.Context, userID int64, filter *transfer.QueueItemFilter) ([]*models.QueueItem, error) {
	query := `SELECT ` + queueItemColumns + ` FROM queue_items WHERE user_id = $1`
	args := []any{userID}

	if filter != nil {
		if len(filter.Statuses) > 0 {
			args = append(args, pq.Array(filter.Statuses))
			query += ` AND status = ANY($` + strconv.Itoa(len(args)) + `)`
		}
		if filter.From != nil {
			args = append(args, *filter.From)
			query += ` AND scheduled_for >= $` + strconv.Itoa(len(args))
		}
		if filter.To != nil {
			args = append(args, *filter.To)
			query += ` AND scheduled_for <= $` + strconv.Itoa(len(args))
		}
		if len(filter.AccountIDs) > 0 {
			args = append(args, pq.Int64Array(filter.AccountIDs))
			query += ` AND account_ids && $` + strconv.Itoa(len(args))
		}
	}

	query += ` ORDER BY scheduled_for ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return items, nil
}

func (r *queueItemRepository) ListDue(ctx context.Context, now time.Time) ([]*models.QueueItem, error) {
	query := `SELECT ` + queueItemColumns + ` FROM queue_items
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for ASC, priority ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, models.QueueStatusScheduled, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return items, nil
}

func (r *queueItemRepository) PromoteDuePending(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE queue_items
		SET status = $1, updated_at = $2
		WHERE status = $3 AND scheduled_for <= $4
	`
	res, err := r.db.ExecContext(ctx, query, models.QueueStatusScheduled, now, models.QueueStatusPending, now)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return res.RowsAffected()
}

// Claim flips one item scheduled -> processing. The conditional WHERE makes
// it the single point of contention: exactly one concurrent caller observes
// RowsAffected == 1.
func (r *queueItemRepository) Claim(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE queue_items
		SET status = $1, attempt_count = attempt_count + 1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, models.QueueStatusProcessing, time.Now(), id, models.QueueStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// MarkPosted finishes a claimed item and consumes the selected pool files in
// the same transaction, so a competing run can never see the files unused.
func (r *queueItemRepository) MarkPosted(ctx context.Context, id int64, usedFileIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE queue_items
		SET status = $1, last_error = '', updated_at = $2
		WHERE id = $3 AND status = $4
	`, models.QueueStatusPosted, time.Now(), id, models.QueueStatusProcessing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return apperr.InvalidTransition("(not processing)", models.QueueStatusPosted)
	}

	if len(usedFileIDs) > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE drive_files
			SET use_count = use_count + 1, last_used_at = $1
			WHERE id = ANY($2)
		`, time.Now(), pq.Int64Array(usedFileIDs))
		if err != nil {
			slog.Info(err.Error())
			return err
		}
	}

	return tx.Commit()
}

func (r *queueItemRepository) MarkFailed(ctx context.Context, id int64, lastError string) (bool, error) {
	query := `
		UPDATE queue_items
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, models.QueueStatusFailed, lastError, time.Now(), id, models.QueueStatusProcessing)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *queueItemRepository) Reschedule(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE queue_items
		SET status = $1, scheduled_for = $2, last_error = '', updated_at = $3
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, models.QueueStatusScheduled, at, time.Now(), id, models.QueueStatusProcessing)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// RetryFailed resets a failed item for another attempt. The attempt counter
// is deliberately kept.
func (r *queueItemRepository) RetryFailed(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE queue_items
		SET status = $1, last_error = '', updated_at = $2
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, models.QueueStatusScheduled, time.Now(), id, models.QueueStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// BulkUpdateStatus applies the target status to every id inside one
// transaction. Any unowned id fails the whole batch; a terminal item already
// at the target status is a no-op.
func (r *queueItemRepository) BulkUpdateStatus(ctx context.Context, userID int64, ids []int64, target string) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, status FROM queue_items WHERE id = ANY($1) FOR UPDATE
	`, pq.Int64Array(ids))
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	statuses := make(map[int64]string, len(ids))
	for rows.Next() {
		var id, owner int64
		var status string
		if err := rows.Scan(&id, &owner, &status); err != nil {
			rows.Close()
			slog.Info(err.Error())
			return err
		}
		if owner != userID {
			rows.Close()
			return apperr.Ownership("item %d does not belong to user %d", id, userID)
		}
		statuses[id] = status
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return err
	}

	for _, id := range ids {
		current, ok := statuses[id]
		if !ok {
			return apperr.Ownership("item %d does not belong to user %d", id, userID)
		}
		if current == target {
			continue
		}
		if !models.CanTransition(current, target) {
			return apperr.InvalidTransition(current, target)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE queue_items SET status = $1, updated_at = $2 WHERE id = $3
		`, target, time.Now(), id); err != nil {
			slog.Info(err.Error())
			return err
		}
	}

	return tx.Commit()
}

func (r *queueItemRepository) CountByStatus(ctx context.Context, userID int64) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM queue_items WHERE user_id = $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return counts, nil
}

func (r *queueItemRepository) CountStaleProcessing(ctx context.Context, userID int64, cutoff time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM queue_items WHERE user_id = $1 AND status = $2 AND updated_at < $3`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, models.QueueStatusProcessing, cutoff).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *queueItemRepository) ExistsForScheduleAt(ctx context.Context, scheduleID int64, at time.Time) (bool, error) {
	query := `SELECT 1 FROM queue_items WHERE schedule_id = $1 AND scheduled_for = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, scheduleID, at).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

func (r *queueItemRepository) CancelPendingBySchedule(ctx context.Context, scheduleID int64) (int64, error) {
	query := `
		UPDATE queue_items
		SET status = $1, updated_at = $2
		WHERE schedule_id = $3 AND status IN ($4, $5)
	`
	res, err := r.db.ExecContext(ctx, query, models.QueueStatusCancelled, time.Now(), scheduleID,
		models.QueueStatusPending, models.QueueStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return res.RowsAffected()
}
