package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueueProcessDue schedules a full processing pass after the given delay.
func EnqueueProcessDue(asynqClient *asynq.Client, delay time.Duration) error {
	task := asynq.NewTask(TaskTypeProcessDue, nil)

	_, err := asynqClient.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return err
	}

	return nil
}

// EnqueueProcessItem schedules a single item for immediate processing,
// bypassing the periodic pass.
func EnqueueProcessItem(asynqClient *asynq.Client, payload ProcessItemPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeProcessItem, taskPayload)

	_, err = asynqClient.Enqueue(task)
	if err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("item task enqueued: %d", payload.ItemID))
	return nil
}
