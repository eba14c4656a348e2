package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/autopost/internal/queue"
	"github.com/maheshrc27/autopost/internal/service"
)

type ExpansionJob struct {
	sc     service.SchedulerService
	client *asynq.Client
}

func NewExpansionJob(sc service.SchedulerService, client *asynq.Client) *ExpansionJob {
	return &ExpansionJob{
		sc:     sc,
		client: client,
	}
}

// Run expands active schedules into queue items and kicks off a processing
// pass for anything that came due.
func (c *ExpansionJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	created, err := c.sc.ExpandDue(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	if created > 0 {
		slog.Info("schedule expansion created queue items")
	}

	if err := queue.EnqueueProcessDue(c.client, 0); err != nil {
		slog.Info(err.Error())
	}
}
