package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/autopost/internal/apperr"
)

// HandleProcessDueTask runs a full processing pass. An already-running
// processor is not an error: another instance holds the run and this pass is
// simply skipped.
func (q *Queue) HandleProcessDueTask(ctx context.Context, task *asynq.Task) error {
	summary, err := q.pc.Process(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyRunning) {
			slog.Info("processing pass skipped: another run is active")
			return nil
		}
		slog.Info(err.Error())
		return err
	}

	slog.Info(summary.String())
	return nil
}

func (q *Queue) HandleProcessItemTask(ctx context.Context, task *asynq.Task) error {
	var payload ProcessItemPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	err := q.pc.ProcessSingleItem(ctx, payload.ItemID)
	if err != nil {
		// The item may have been claimed or finished by a periodic pass in
		// the meantime; retrying the task would not help.
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidTransition) {
			slog.Info(err.Error())
			return nil
		}
		slog.Info(err.Error())
		return err
	}

	return nil
}

// HandleExpandDueTask materializes queue items for schedule slots that have
// come due.
func (q *Queue) HandleExpandDueTask(ctx context.Context, task *asynq.Task) error {
	created, err := q.sc.ExpandDue(ctx)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	if created > 0 {
		slog.Info("schedule expansion created items")
	}
	return nil
}
