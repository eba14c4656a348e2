package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processorFixture struct {
	qr  *fakeQueueRepo
	pr  *fakeStateRepo
	fr  *fakeFileRepo
	ar  *fakeAccountRepo
	hr  *fakeHistoryRepo
	pub *fakePublisher
	now time.Time
	svc ProcessorService
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	f := &processorFixture{
		qr:  newFakeQueueRepo(),
		pr:  newFakeStateRepo(),
		fr:  newFakeFileRepo(),
		ar:  newFakeAccountRepo(&models.SocialAccount{ID: 10, UserID: 1, Platform: "youtube"}),
		hr:  newFakeHistoryRepo(),
		pub: newFakePublisher(),
		now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	sel := NewSelectionService(f.fr)
	f.svc = NewProcessorService(testConfig(), f.qr, f.pr, f.fr, f.ar, f.hr, sel, f.pub)
	f.svc.(*processorService).now = func() time.Time { return f.now }
	return f
}

func (f *processorFixture) addDueText(accountIDs ...int64) int64 {
	if len(accountIDs) == 0 {
		accountIDs = []int64{10}
	}
	return f.qr.add(models.QueueItem{
		UserID:       1,
		ContentType:  models.ContentTypeText,
		Caption:      "hello",
		ScheduledFor: f.now.Add(-time.Minute),
		Status:       models.QueueStatusScheduled,
		AccountIDs:   accountIDs,
	})
}

func TestProcessPostsDueItem(t *testing.T) {
	f := newProcessorFixture(t)
	id := f.addDueText()

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Claimed)
	assert.Equal(t, 1, summary.Posted)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, models.QueueStatusPosted, f.qr.status(id))

	records, err := f.hr.ListByUserSince(context.Background(), 1, f.now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "post-10", records[0].PlatformPostID)
	assert.Equal(t, "youtube", records[0].Platform)
	assert.True(t, records[0].Success())

	st, err := f.pr.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, st.IsRunning)
	assert.Equal(t, 1, st.ItemsLastRun)
}

func TestProcessPromotesDuePending(t *testing.T) {
	f := newProcessorFixture(t)
	id := f.qr.add(models.QueueItem{
		UserID: 1, ContentType: models.ContentTypeText,
		ScheduledFor: f.now.Add(-time.Minute),
		Status:       models.QueueStatusPending,
		AccountIDs:   []int64{10},
	})

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Posted)
	assert.Equal(t, models.QueueStatusPosted, f.qr.status(id))
}

func TestProcessIgnoresFutureItems(t *testing.T) {
	f := newProcessorFixture(t)
	id := f.qr.add(models.QueueItem{
		UserID: 1, ContentType: models.ContentTypeText,
		ScheduledFor: f.now.Add(time.Hour),
		Status:       models.QueueStatusPending,
		AccountIDs:   []int64{10},
	})

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Claimed)
	assert.Equal(t, models.QueueStatusPending, f.qr.status(id))
}

func TestProcessRefusesSecondConcurrentRun(t *testing.T) {
	f := newProcessorFixture(t)

	hb := f.now.Add(-time.Minute)
	f.pr.state.IsRunning = true
	f.pr.state.RunID = "other"
	f.pr.state.LastHeartbeat = &hb

	_, err := f.svc.Process(context.Background())
	assert.ErrorIs(t, err, apperr.ErrAlreadyRunning)
}

func TestProcessTakesOverStaleRun(t *testing.T) {
	f := newProcessorFixture(t)
	id := f.addDueText()

	// Heartbeat far older than the staleness window counts as a crashed run.
	hb := f.now.Add(-time.Hour)
	f.pr.state.IsRunning = true
	f.pr.state.RunID = "crashed"
	f.pr.state.LastHeartbeat = &hb

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Posted)
	assert.Equal(t, models.QueueStatusPosted, f.qr.status(id))
}

// raceQueueRepo steals one claim, as a concurrent run would.
type raceQueueRepo struct {
	*fakeQueueRepo
	stealID int64
	once    sync.Once
}

func (r *raceQueueRepo) Claim(ctx context.Context, id int64) (bool, error) {
	stolen := false
	if id == r.stealID {
		r.once.Do(func() {
			r.mu.Lock()
			r.items[id].Status = models.QueueStatusProcessing
			r.mu.Unlock()
			stolen = true
		})
	}
	if stolen {
		return false, nil
	}
	return r.fakeQueueRepo.Claim(ctx, id)
}

func TestProcessSkipsItemsClaimedElsewhere(t *testing.T) {
	f := newProcessorFixture(t)
	contested := f.addDueText()
	free := f.addDueText()

	race := &raceQueueRepo{fakeQueueRepo: f.qr, stealID: contested}
	f.svc.(*processorService).qr = race

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Claimed)
	assert.Equal(t, 1, summary.Posted)
	assert.Equal(t, models.QueueStatusProcessing, f.qr.status(contested))
	assert.Equal(t, models.QueueStatusPosted, f.qr.status(free))
}

func TestClaimAdmitsExactlyOneCaller(t *testing.T) {
	qr := newFakeQueueRepo()
	id := qr.add(models.QueueItem{
		UserID: 1, Status: models.QueueStatusScheduled, ScheduledFor: time.Now(),
	})

	var wg sync.WaitGroup
	wins := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := qr.Claim(context.Background(), id)
			assert.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won)
}

func TestProcessReschedulesRetryableFailure(t *testing.T) {
	f := newProcessorFixture(t)
	id := f.addDueText()
	f.pub.fail(10, apperr.Retryable(10, errors.New("rate limited")))

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Requeued)

	item, err := f.qr.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusScheduled, item.Status)
	assert.Equal(t, 1, item.AttemptCount)
	assert.Equal(t, f.now.Add(5*time.Minute), item.ScheduledFor)

	// The failed attempt is still in the history.
	records, err := f.hr.ListByUserSince(context.Background(), 1, f.now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Success())
}

func TestProcessFailsFatalFailure(t *testing.T) {
	f := newProcessorFixture(t)
	id := f.addDueText()
	f.pub.fail(10, apperr.Fatal(10, errors.New("video rejected")))

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	item, err := f.qr.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, item.Status)
	assert.Contains(t, item.LastError, "video rejected")
}

func TestProcessFatalOutweighsRetryable(t *testing.T) {
	f := newProcessorFixture(t)
	f.ar.accounts[20] = &models.SocialAccount{ID: 20, UserID: 1, Platform: "tiktok"}
	id := f.addDueText(10, 20)

	f.pub.fail(10, apperr.Retryable(10, errors.New("rate limited")))
	f.pub.fail(20, apperr.Fatal(20, errors.New("banned")))

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	item, err := f.qr.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, item.Status)
	assert.Contains(t, item.LastError, "banned")
}

func TestProcessExhaustsRetryBudget(t *testing.T) {
	f := newProcessorFixture(t)
	id := f.qr.add(models.QueueItem{
		UserID: 1, ContentType: models.ContentTypeText,
		ScheduledFor: f.now.Add(-time.Minute),
		Status:       models.QueueStatusScheduled,
		AccountIDs:   []int64{10},
		AttemptCount: 2, // the claim makes this the third and last attempt
	})
	f.pub.fail(10, apperr.Retryable(10, errors.New("still down")))

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, models.QueueStatusFailed, f.qr.status(id))
}

func TestProcessVanishedAccountIsFatal(t *testing.T) {
	f := newProcessorFixture(t)
	id := f.addDueText(99)

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	item, err := f.qr.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, item.LastError, "no longer exists")
}

func TestProcessPooledItemConsumesSelectedFiles(t *testing.T) {
	f := newProcessorFixture(t)
	used := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	f.fr.files[1] = &models.DriveFile{ID: 1, UserID: 1, FolderID: 5, FileURL: "https://cdn/a.mp4", Available: true, LastUsedAt: &used}
	f.fr.files[2] = &models.DriveFile{ID: 2, UserID: 1, FolderID: 5, FileURL: "https://cdn/b.mp4", Available: true}

	id := f.qr.add(models.QueueItem{
		UserID: 1, ContentType: models.ContentTypePooled,
		ScheduledFor: f.now.Add(-time.Minute),
		Status:       models.QueueStatusScheduled,
		AccountIDs:   []int64{10},
		Metadata: models.ItemMetadata{
			FolderIDs: []int64{5},
			Strategy:  models.SelectionStrategyLRU,
		},
	})

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Posted)

	// Never-used file 2 sorts first under LRU and gets consumed.
	assert.Equal(t, []int64{2}, f.qr.usedFiles[id])
}

func TestProcessPooledItemWithoutCandidatesFails(t *testing.T) {
	f := newProcessorFixture(t)
	id := f.qr.add(models.QueueItem{
		UserID: 1, ContentType: models.ContentTypePooled,
		ScheduledFor: f.now.Add(-time.Minute),
		Status:       models.QueueStatusScheduled,
		AccountIDs:   []int64{10},
		Metadata:     models.ItemMetadata{FolderIDs: []int64{5}},
	})

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	item, err := f.qr.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, item.LastError, "content selection failed")
}

func TestProcessFixedItemResolvesFile(t *testing.T) {
	f := newProcessorFixture(t)
	f.fr.files[7] = &models.DriveFile{ID: 7, UserID: 1, FolderID: 5, FileURL: "https://cdn/fixed.mp4", Available: true}

	id := f.qr.add(models.QueueItem{
		UserID: 1, ContentType: models.ContentTypeFixed, ContentRef: "7",
		ScheduledFor: f.now.Add(-time.Minute),
		Status:       models.QueueStatusScheduled,
		AccountIDs:   []int64{10},
	})

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Posted)
	assert.Equal(t, models.QueueStatusPosted, f.qr.status(id))
	// Fixed media is not pool-consumed.
	assert.Empty(t, f.qr.usedFiles[id])
}

func TestProcessFixedItemWithMissingFileFails(t *testing.T) {
	f := newProcessorFixture(t)
	id := f.qr.add(models.QueueItem{
		UserID: 1, ContentType: models.ContentTypeFixed, ContentRef: "404",
		ScheduledFor: f.now.Add(-time.Minute),
		Status:       models.QueueStatusScheduled,
		AccountIDs:   []int64{10},
	})

	summary, err := f.svc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, models.QueueStatusFailed, f.qr.status(id))
}

func TestProcessSingleItem(t *testing.T) {
	f := newProcessorFixture(t)
	id := f.addDueText()

	require.NoError(t, f.svc.ProcessSingleItem(context.Background(), id))
	assert.Equal(t, models.QueueStatusPosted, f.qr.status(id))
}

func TestProcessSingleItemErrors(t *testing.T) {
	f := newProcessorFixture(t)

	posted := f.qr.add(models.QueueItem{UserID: 1, Status: models.QueueStatusPosted, ScheduledFor: f.now})
	pending := f.qr.add(models.QueueItem{UserID: 1, Status: models.QueueStatusPending, ScheduledFor: f.now.Add(time.Hour)})

	err := f.svc.ProcessSingleItem(context.Background(), 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = f.svc.ProcessSingleItem(context.Background(), posted)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	// Pending items are not claimable until promoted.
	err = f.svc.ProcessSingleItem(context.Background(), pending)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetStatusTreatsStaleHeartbeatAsIdle(t *testing.T) {
	f := newProcessorFixture(t)

	hb := f.now.Add(-time.Hour)
	f.pr.state.IsRunning = true
	f.pr.state.LastHeartbeat = &hb

	status, err := f.svc.GetStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.IsRunning)

	fresh := f.now.Add(-time.Minute)
	f.pr.state.LastHeartbeat = &fresh

	status, err = f.svc.GetStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.IsRunning)
}

func TestBackoffDoublesUpToCap(t *testing.T) {
	f := newProcessorFixture(t)
	svc := f.svc.(*processorService)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 5 * time.Minute},
		{attempt: 2, want: 10 * time.Minute},
		{attempt: 3, want: 20 * time.Minute},
		{attempt: 5, want: 80 * time.Minute},
		{attempt: 20, want: 6 * time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, svc.backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}
