package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type ProcessorService interface {
	Process(ctx context.Context) (*transfer.ProcessRunSummary, error)
	ProcessSingleItem(ctx context.Context, itemID int64) error
	GetStatus(ctx context.Context) (*transfer.ProcessorStatus, error)
}

type processorService struct {
	cfg config.Config
	qr  repository.QueueItemRepository
	pr  repository.ProcessorStateRepository
	fr  repository.DriveFileRepository
	ar  repository.SocialAccountRepository
	hr  repository.PostingHistoryRepository
	sel SelectionService
	pub Publisher
	now func() time.Time
}

func NewProcessorService(
	cfg config.Config,
	qr repository.QueueItemRepository,
	pr repository.ProcessorStateRepository,
	fr repository.DriveFileRepository,
	ar repository.SocialAccountRepository,
	hr repository.PostingHistoryRepository,
	sel SelectionService,
	pub Publisher) ProcessorService {
	return &processorService{
		cfg: cfg,
		qr:  qr,
		pr:  pr,
		fr:  fr,
		ar:  ar,
		hr:  hr,
		sel: sel,
		pub: pub,
		now: time.Now,
	}
}

// Process claims and executes every due item. Concurrent bulk runs are
// serialized through the processor_state row; item-level correctness does
// not depend on it, the per-item claim alone decides ownership.
func (s *processorService) Process(ctx context.Context) (*transfer.ProcessRunSummary, error) {
	runID := uuid.NewString()
	cutoff := s.now().Add(-s.cfg.Processor.RunnerStaleAfter)

	ok, err := s.pr.TryBeginRun(ctx, runID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("error acquiring processor run: %w", err)
	}
	if !ok {
		return nil, apperr.ErrAlreadyRunning
	}

	summary := &transfer.ProcessRunSummary{RunID: runID}
	defer func() {
		if err := s.pr.FinishRun(context.WithoutCancel(ctx), runID, summary.Claimed); err != nil {
			slog.Info(err.Error())
		}
	}()

	if promoted, err := s.qr.PromoteDuePending(ctx, s.now()); err != nil {
		slog.Info(err.Error())
	} else if promoted > 0 {
		slog.Info(fmt.Sprintf("promoted %d pending items to scheduled", promoted))
	}

	items, err := s.qr.ListDue(ctx, s.now())
	if err != nil {
		return summary, fmt.Errorf("error listing due items: %w", err)
	}

	// The store already orders by (scheduled_for, priority, id); keep the
	// guarantee even against a fake that does not.
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.ScheduledFor.Equal(b.ScheduledFor) {
			return a.ScheduledFor.Before(b.ScheduledFor)
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})

	for _, item := range items {
		claimed, err := s.qr.Claim(ctx, item.ID)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if !claimed {
			// Another run got there first.
			summary.Skipped++
			continue
		}
		summary.Claimed++

		switch s.executeClaimed(ctx, item.ID) {
		case models.QueueStatusPosted:
			summary.Posted++
		case models.QueueStatusScheduled:
			summary.Requeued++
		default:
			summary.Failed++
		}

		if err := s.pr.Heartbeat(ctx, runID); err != nil {
			slog.Info(err.Error())
		}
	}

	return summary, nil
}

func (s *processorService) ProcessSingleItem(ctx context.Context, itemID int64) error {
	item, err := s.qr.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return apperr.NotFound("queue item %d", itemID)
	}
	if models.IsTerminalStatus(item.Status) {
		return apperr.InvalidTransition(item.Status, models.QueueStatusProcessing)
	}

	claimed, err := s.qr.Claim(ctx, itemID)
	if err != nil {
		return err
	}
	if !claimed {
		// Either not yet due (pending) or another run holds it.
		return apperr.NotFound("queue item %d is not claimable", itemID)
	}

	s.executeClaimed(ctx, itemID)
	return nil
}

func (s *processorService) GetStatus(ctx context.Context) (*transfer.ProcessorStatus, error) {
	st, err := s.pr.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading processor state: %w", err)
	}

	running := st.IsRunning
	if running && st.LastHeartbeat != nil &&
		st.LastHeartbeat.Before(s.now().Add(-s.cfg.Processor.RunnerStaleAfter)) {
		// A crashed run leaves the flag set; an expired heartbeat means no
		// cycle is actually in flight.
		running = false
	}

	return &transfer.ProcessorStatus{
		IsRunning:             running,
		LastRunAt:             st.LastRunAt,
		ItemsProcessedLastRun: st.ItemsLastRun,
	}, nil
}

// executeClaimed runs one item the current call already owns and returns the
// resulting status.
func (s *processorService) executeClaimed(ctx context.Context, itemID int64) string {
	item, err := s.qr.GetByID(ctx, itemID)
	if err != nil || item == nil {
		slog.Info(fmt.Sprintf("claimed item %d vanished", itemID))
		return models.QueueStatusFailed
	}

	content, usedFileIDs, err := s.resolveContent(ctx, item)
	if err != nil {
		return s.finishFailed(ctx, item, err.Error())
	}

	// Ascending account id makes the decisive error deterministic.
	accountIDs := append([]int64(nil), item.AccountIDs...)
	sort.Slice(accountIDs, func(i, j int) bool { return accountIDs[i] < accountIDs[j] })

	var publishErrs []error
	for _, accountID := range accountIDs {
		if err := s.publishToAccount(ctx, item, accountID, content); err != nil {
			publishErrs = append(publishErrs, err)
		}
	}

	if len(publishErrs) == 0 {
		if err := s.qr.MarkPosted(ctx, item.ID, usedFileIDs); err != nil {
			slog.Info(err.Error())
			return models.QueueStatusFailed
		}
		return models.QueueStatusPosted
	}

	decisive := publishErrs[0]
	hasFatal := false
	for _, perr := range publishErrs {
		if !apperr.IsRetryable(perr) {
			decisive = perr
			hasFatal = true
			break
		}
	}

	if !hasFatal && item.AttemptCount < s.cfg.Processor.MaxPublishAttempts {
		at := s.now().Add(s.backoff(item.AttemptCount))
		if _, err := s.qr.Reschedule(ctx, item.ID, at); err != nil {
			slog.Info(err.Error())
			return models.QueueStatusFailed
		}
		return models.QueueStatusScheduled
	}

	return s.finishFailed(ctx, item, decisive.Error())
}

func (s *processorService) finishFailed(ctx context.Context, item *models.QueueItem, lastError string) string {
	if _, err := s.qr.MarkFailed(ctx, item.ID, lastError); err != nil {
		slog.Info(err.Error())
	}
	return models.QueueStatusFailed
}

func (s *processorService) publishToAccount(ctx context.Context, item *models.QueueItem, accountID int64, content *PublishContent) error {
	account, err := s.ar.GetByID(ctx, accountID)
	if err != nil {
		return apperr.Retryable(accountID, err)
	}
	if account == nil {
		return apperr.Fatal(accountID, errors.New("target account no longer exists"))
	}

	result, perr := s.pub.Publish(ctx, account, content)

	record := models.PostingHistory{
		UserID:      item.UserID,
		ItemID:      item.ID,
		AccountID:   accountID,
		Platform:    account.Platform,
		ContentType: item.ContentType,
		PostedAt:    s.now(),
	}
	if perr != nil {
		record.ErrorMessage = perr.Error()
	} else if result != nil {
		record.PlatformPostID = result.PlatformPostID
	}
	if _, err := s.hr.Create(ctx, &record); err != nil {
		slog.Info(err.Error())
	}

	return perr
}

// resolveContent builds the publish payload, running pool selection for
// items without fixed media. The selected file ids come back so that their
// consumption commits together with the item's terminal update.
func (s *processorService) resolveContent(ctx context.Context, item *models.QueueItem) (*PublishContent, []int64, error) {
	content := &PublishContent{
		ContentType: item.ContentType,
		Caption:     item.Caption,
		Title:       item.Title,
	}

	switch item.ContentType {
	case models.ContentTypePooled:
		count := item.Metadata.FileCount
		if count <= 0 {
			count = 1
		}
		files, err := s.sel.SelectFiles(ctx, item.UserID, item.Metadata.FolderIDs, count, &SelectionOptions{
			Strategy: item.Metadata.Strategy,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("content selection failed: %w", err)
		}
		usedFileIDs := make([]int64, 0, len(files))
		for _, f := range files {
			content.MediaURLs = append(content.MediaURLs, f.FileURL)
			usedFileIDs = append(usedFileIDs, f.ID)
		}
		return content, usedFileIDs, nil

	case models.ContentTypeFixed:
		fileID, err := strconv.ParseInt(item.ContentRef, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid content reference %q", item.ContentRef)
		}
		file, err := s.fr.GetByID(ctx, fileID)
		if err != nil {
			return nil, nil, err
		}
		if file == nil {
			return nil, nil, fmt.Errorf("media file %d no longer exists", fileID)
		}
		content.MediaURLs = []string{file.FileURL}
		return content, nil, nil

	default:
		return content, nil, nil
	}
}

// backoff is exponential in the attempt number with a configured cap.
func (s *processorService) backoff(attempt int) time.Duration {
	d := s.cfg.Processor.RetryBackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.cfg.Processor.RetryBackoffMax {
			return s.cfg.Processor.RetryBackoffMax
		}
	}
	if d > s.cfg.Processor.RetryBackoffMax {
		d = s.cfg.Processor.RetryBackoffMax
	}
	return d
}
