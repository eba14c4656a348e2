package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/autopost/internal/models"
)

// ProcessorStateRepository manages the single processor_state row. The row
// replaces an in-process "already running" flag so that several server
// instances serialize bulk runs through the store itself.
type ProcessorStateRepository interface {
	TryBeginRun(ctx context.Context, runID string, heartbeatCutoff time.Time) (bool, error)
	Heartbeat(ctx context.Context, runID string) error
	FinishRun(ctx context.Context, runID string, itemsProcessed int) error
	Get(ctx context.Context) (*models.ProcessorState, error)
}

type processorStateRepository struct {
	db *sql.DB
}

func NewProcessorStateRepository(db *sql.DB) ProcessorStateRepository {
	return &processorStateRepository{db: db}
}

// TryBeginRun claims the runner row. A row whose heartbeat predates the
// cutoff counts as abandoned and may be taken over.
func (r *processorStateRepository) TryBeginRun(ctx context.Context, runID string, heartbeatCutoff time.Time) (bool, error) {
	now := time.Now()
	query := `
		UPDATE processor_state
		SET is_running = TRUE, run_id = $1, last_heartbeat = $2, updated_at = $2
		WHERE id = 1 AND (is_running = FALSE OR last_heartbeat IS NULL OR last_heartbeat < $3)
	`
	res, err := r.db.ExecContext(ctx, query, runID, now, heartbeatCutoff)
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

func (r *processorStateRepository) Heartbeat(ctx context.Context, runID string) error {
	query := `UPDATE processor_state SET last_heartbeat = $1, updated_at = $1 WHERE id = 1 AND run_id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now(), runID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *processorStateRepository) FinishRun(ctx context.Context, runID string, itemsProcessed int) error {
	now := time.Now()
	query := `
		UPDATE processor_state
		SET is_running = FALSE, last_run_at = $1, items_last_run = $2, updated_at = $1
		WHERE id = 1 AND run_id = $3
	`
	_, err := r.db.ExecContext(ctx, query, now, itemsProcessed, runID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *processorStateRepository) Get(ctx context.Context) (*models.ProcessorState, error) {
	query := `SELECT id, is_running, run_id, last_run_at, last_heartbeat, items_last_run, updated_at
		FROM processor_state WHERE id = 1`

	var st models.ProcessorState
	err := r.db.QueryRowContext(ctx, query).Scan(&st.ID, &st.IsRunning, &st.RunID,
		&st.LastRunAt, &st.LastHeartbeat, &st.ItemsLastRun, &st.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.ProcessorState{ID: 1}, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &st, nil
}
