package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type QueueService interface {
	AddToQueue(ctx context.Context, userID int64, qc *transfer.QueueItemCreation) (int64, error)
	GetQueueItems(ctx context.Context, userID int64, filter *transfer.QueueItemFilter) ([]*models.QueueItem, error)
	BulkUpdateStatus(ctx context.Context, userID int64, update *transfer.BulkStatusUpdate) error
	RetryFailedItem(ctx context.Context, userID, itemID int64) error
	CancelItem(ctx context.Context, userID, itemID int64) error
	GetQueueStatus(ctx context.Context, userID int64) (*transfer.QueueStatus, error)
	MaterializeScheduleItem(ctx context.Context, schedule *models.Schedule, at time.Time) (bool, error)
	CancelPendingBySchedule(ctx context.Context, scheduleID int64) (int64, error)
}

type queueService struct {
	cfg config.Config
	qr  repository.QueueItemRepository
	ar  repository.SocialAccountRepository
	now func() time.Time
}

func NewQueueService(cfg config.Config, qr repository.QueueItemRepository, ar repository.SocialAccountRepository) QueueService {
	return &queueService{
		cfg: cfg,
		qr:  qr,
		ar:  ar,
		now: time.Now,
	}
}

func (s *queueService) AddToQueue(ctx context.Context, userID int64, qc *transfer.QueueItemCreation) (int64, error) {
	if qc == nil {
		return 0, apperr.Validation("queue item data is nil")
	}
	if !models.IsContentType(qc.ContentType) {
		return 0, apperr.Validation("unknown content type %q", qc.ContentType)
	}
	if len(qc.AccountIDs) == 0 {
		return 0, apperr.Validation("at least one target account is required")
	}

	scheduledFor, err := time.Parse(time.RFC3339, qc.ScheduledFor)
	if err != nil {
		// Fall back to the datetime-local format the dashboard sends.
		scheduledFor, err = time.Parse("2006-01-02T15:04", qc.ScheduledFor)
		if err != nil {
			return 0, apperr.Validation("invalid scheduled time %q", qc.ScheduledFor)
		}
	}

	owned, err := s.ar.CountOwned(ctx, userID, qc.AccountIDs)
	if err != nil {
		return 0, fmt.Errorf("error checking target accounts: %w", err)
	}
	if owned != len(qc.AccountIDs) {
		return 0, apperr.Validation("one or more target accounts do not belong to the user")
	}

	// Items already due go straight to scheduled so the next processor run
	// picks them up; future items wait in pending.
	status := models.QueueStatusPending
	if !scheduledFor.After(s.now()) {
		status = models.QueueStatusScheduled
	}

	item := models.QueueItem{
		UserID:       userID,
		ContentType:  qc.ContentType,
		ContentRef:   qc.ContentRef,
		Caption:      qc.Caption,
		Title:        qc.Title,
		ScheduledFor: scheduledFor,
		Status:       status,
		AccountIDs:   qc.AccountIDs,
		Priority:     qc.Priority,
		Metadata:     qc.Metadata,
	}

	id, err := s.qr.Create(ctx, nil, &item)
	if err != nil {
		return 0, fmt.Errorf("error creating queue item: %w", err)
	}
	return id, nil
}

func (s *queueService) GetQueueItems(ctx context.Context, userID int64, filter *transfer.QueueItemFilter) ([]*models.QueueItem, error) {
	if filter != nil {
		for _, st := range filter.Statuses {
			if !models.IsQueueStatus(st) {
				return nil, apperr.Validation("unknown status %q", st)
			}
		}
	}

	items, err := s.qr.ListByUserID(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing queue items: %w", err)
	}
	return items, nil
}

func (s *queueService) BulkUpdateStatus(ctx context.Context, userID int64, update *transfer.BulkStatusUpdate) error {
	if update == nil || len(update.IDs) == 0 {
		return apperr.Validation("no item ids given")
	}
	if !models.IsQueueStatus(update.Status) {
		return apperr.Validation("unknown status %q", update.Status)
	}

	if err := s.qr.BulkUpdateStatus(ctx, userID, update.IDs, update.Status); err != nil {
		return err
	}
	return nil
}

func (s *queueService) RetryFailedItem(ctx context.Context, userID, itemID int64) error {
	item, err := s.qr.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil || item.UserID != userID {
		return apperr.NotFound("queue item %d", itemID)
	}
	if item.Status != models.QueueStatusFailed {
		return apperr.InvalidTransition(item.Status, models.QueueStatusScheduled)
	}

	ok, err := s.qr.RetryFailed(ctx, itemID)
	if err != nil {
		return fmt.Errorf("error retrying queue item: %w", err)
	}
	if !ok {
		// Lost a race: the item left failed between the read and the update.
		return apperr.InvalidTransition("(no longer failed)", models.QueueStatusScheduled)
	}
	return nil
}

func (s *queueService) CancelItem(ctx context.Context, userID, itemID int64) error {
	item, err := s.qr.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil || item.UserID != userID {
		return apperr.NotFound("queue item %d", itemID)
	}

	return s.qr.BulkUpdateStatus(ctx, userID, []int64{itemID}, models.QueueStatusCancelled)
}

func (s *queueService) GetQueueStatus(ctx context.Context, userID int64) (*transfer.QueueStatus, error) {
	counts, err := s.qr.CountByStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error counting queue items: %w", err)
	}

	cutoff := s.now().Add(-s.cfg.Processor.ProcessingStaleAfter)
	stale, err := s.qr.CountStaleProcessing(ctx, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("error counting stale items: %w", err)
	}

	status := &transfer.QueueStatus{
		Counts:          counts,
		IsHealthy:       true,
		StaleProcessing: stale,
	}

	if failed := counts[models.QueueStatusFailed]; failed > s.cfg.Queue.FailedHealthThreshold {
		status.IsHealthy = false
		status.Diagnosis = append(status.Diagnosis,
			fmt.Sprintf("%d failed items exceed threshold %d", failed, s.cfg.Queue.FailedHealthThreshold))
	}
	if stale > 0 {
		status.IsHealthy = false
		status.Diagnosis = append(status.Diagnosis,
			fmt.Sprintf("%d items stuck in processing longer than %s", stale, s.cfg.Processor.ProcessingStaleAfter))
	}
	return status, nil
}

// MaterializeScheduleItem creates the queue item for one expanded instant.
// Returns false when the instant was already materialized.
func (s *queueService) MaterializeScheduleItem(ctx context.Context, schedule *models.Schedule, at time.Time) (bool, error) {
	exists, err := s.qr.ExistsForScheduleAt(ctx, schedule.ID, at)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	status := models.QueueStatusPending
	if !at.After(s.now()) {
		status = models.QueueStatusScheduled
	}

	scheduleID := schedule.ID
	item := models.QueueItem{
		UserID:       schedule.UserID,
		ScheduleID:   &scheduleID,
		ContentType:  schedule.ContentType(),
		Caption:      schedule.SourceConfig.Caption,
		Title:        schedule.SourceConfig.Title,
		ScheduledFor: at,
		Status:       status,
		AccountIDs:   schedule.AccountIDs,
		Metadata: models.ItemMetadata{
			FolderIDs:  schedule.SourceConfig.FolderIDs,
			Strategy:   schedule.SourceConfig.Strategy,
			TemplateID: schedule.TemplateID,
		},
	}
	if schedule.SourceType == models.SourceTypeFixedMedia && schedule.SourceConfig.FileID != nil {
		item.ContentRef = fmt.Sprintf("%d", *schedule.SourceConfig.FileID)
	}

	if _, err := s.qr.Create(ctx, nil, &item); err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return true, nil
}

func (s *queueService) CancelPendingBySchedule(ctx context.Context, scheduleID int64) (int64, error) {
	return s.qr.CancelPendingBySchedule(ctx, scheduleID)
}
