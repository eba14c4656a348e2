package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/transfer"
)

// In-memory repository fakes mirroring the conditional-update semantics of
// the SQL implementations, so service tests exercise the same transition and
// claim behavior without a database.

type fakeQueueRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*models.QueueItem

	// usedFiles records what MarkPosted consumed, keyed by item id.
	usedFiles map[int64][]int64
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{
		items:     make(map[int64]*models.QueueItem),
		usedFiles: make(map[int64][]int64),
	}
}

func (r *fakeQueueRepo) add(item models.QueueItem) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	item.ID = r.nextID
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now()
	}
	r.items[item.ID] = &item
	return item.ID
}

func (r *fakeQueueRepo) Create(_ context.Context, _ *sql.Tx, item *models.QueueItem) (int64, error) {
	return r.add(*item), nil
}

func (r *fakeQueueRepo) GetByID(_ context.Context, id int64) (*models.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (r *fakeQueueRepo) ListByUserID(_ context.Context, userID int64, filter *transfer.QueueItemFilter) ([]*models.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []*models.QueueItem
	for _, item := range r.items {
		if item.UserID != userID {
			continue
		}
		if filter != nil {
			if len(filter.Statuses) > 0 {
				match := false
				for _, st := range filter.Statuses {
					if item.Status == st {
						match = true
						break
					}
				}
				if !match {
					continue
				}
			}
			if filter.From != nil && item.ScheduledFor.Before(*filter.From) {
				continue
			}
			if filter.To != nil && item.ScheduledFor.After(*filter.To) {
				continue
			}
			if len(filter.AccountIDs) > 0 {
				overlap := false
				for _, want := range filter.AccountIDs {
					for _, have := range item.AccountIDs {
						if want == have {
							overlap = true
						}
					}
				}
				if !overlap {
					continue
				}
			}
		}
		copied := *item
		items = append(items, &copied)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].ScheduledFor.Equal(items[j].ScheduledFor) {
			return items[i].ScheduledFor.Before(items[j].ScheduledFor)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (r *fakeQueueRepo) ListDue(_ context.Context, now time.Time) ([]*models.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []*models.QueueItem
	for _, item := range r.items {
		if item.Status == models.QueueStatusScheduled && !item.ScheduledFor.After(now) {
			copied := *item
			items = append(items, &copied)
		}
	}
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
	return items, nil
}

func (r *fakeQueueRepo) PromoteDuePending(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var promoted int64
	for _, item := range r.items {
		if item.Status == models.QueueStatusPending && !item.ScheduledFor.After(now) {
			item.Status = models.QueueStatusScheduled
			item.UpdatedAt = now
			promoted++
		}
	}
	return promoted, nil
}

func (r *fakeQueueRepo) Claim(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.Status != models.QueueStatusScheduled {
		return false, nil
	}
	item.Status = models.QueueStatusProcessing
	item.AttemptCount++
	item.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeQueueRepo) MarkPosted(_ context.Context, id int64, usedFileIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.Status != models.QueueStatusProcessing {
		return apperr.InvalidTransition("(not processing)", models.QueueStatusPosted)
	}
	item.Status = models.QueueStatusPosted
	item.LastError = ""
	item.UpdatedAt = time.Now()
	r.usedFiles[id] = append([]int64(nil), usedFileIDs...)
	return nil
}

func (r *fakeQueueRepo) MarkFailed(_ context.Context, id int64, lastError string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.Status != models.QueueStatusProcessing {
		return false, nil
	}
	item.Status = models.QueueStatusFailed
	item.LastError = lastError
	item.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeQueueRepo) Reschedule(_ context.Context, id int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.Status != models.QueueStatusProcessing {
		return false, nil
	}
	item.Status = models.QueueStatusScheduled
	item.ScheduledFor = at
	item.LastError = ""
	item.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeQueueRepo) RetryFailed(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.Status != models.QueueStatusFailed {
		return false, nil
	}
	item.Status = models.QueueStatusScheduled
	item.LastError = ""
	item.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeQueueRepo) BulkUpdateStatus(_ context.Context, userID int64, ids []int64, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate the whole batch before touching anything, matching the SQL
	// implementation's all-or-nothing transaction.
	for _, id := range ids {
		item, ok := r.items[id]
		if !ok || item.UserID != userID {
			return apperr.Ownership("item %d does not belong to user %d", id, userID)
		}
		if item.Status == target {
			continue
		}
		if !models.CanTransition(item.Status, target) {
			return apperr.InvalidTransition(item.Status, target)
		}
	}
	for _, id := range ids {
		item := r.items[id]
		if item.Status != target {
			item.Status = target
			item.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (r *fakeQueueRepo) CountByStatus(_ context.Context, userID int64) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	for _, item := range r.items {
		if item.UserID == userID {
			counts[item.Status]++
		}
	}
	return counts, nil
}

func (r *fakeQueueRepo) CountStaleProcessing(_ context.Context, userID int64, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, item := range r.items {
		if item.UserID == userID && item.Status == models.QueueStatusProcessing && item.UpdatedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (r *fakeQueueRepo) ExistsForScheduleAt(_ context.Context, scheduleID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.items {
		if item.ScheduleID != nil && *item.ScheduleID == scheduleID && item.ScheduledFor.Equal(at) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeQueueRepo) CancelPendingBySchedule(_ context.Context, scheduleID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cancelled int64
	for _, item := range r.items {
		if item.ScheduleID == nil || *item.ScheduleID != scheduleID {
			continue
		}
		if item.Status == models.QueueStatusPending || item.Status == models.QueueStatusScheduled {
			item.Status = models.QueueStatusCancelled
			item.UpdatedAt = time.Now()
			cancelled++
		}
	}
	return cancelled, nil
}

func (r *fakeQueueRepo) status(id int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].Status
}

type fakeScheduleRepo struct {
	mu        sync.Mutex
	nextID    int64
	schedules map[int64]*models.Schedule
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: make(map[int64]*models.Schedule)}
}

func (r *fakeScheduleRepo) Create(_ context.Context, s *models.Schedule) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	copied := *s
	copied.ID = r.nextID
	r.schedules[copied.ID] = &copied
	return copied.ID, nil
}

func (r *fakeScheduleRepo) GetByID(_ context.Context, id int64) (*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *fakeScheduleRepo) ListByUserID(_ context.Context, userID int64) ([]*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Schedule
	for _, s := range r.schedules {
		if s.UserID == userID {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeScheduleRepo) ListActive(_ context.Context) ([]*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Schedule
	for _, s := range r.schedules {
		if s.IsActive {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeScheduleRepo) Update(_ context.Context, s *models.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.schedules[s.ID] = &copied
	return nil
}

func (r *fakeScheduleRepo) SetActive(_ context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.schedules[id]; ok {
		s.IsActive = active
	}
	return nil
}

func (r *fakeScheduleRepo) Remove(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schedules, id)
	return nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*models.SocialAccount
}

func newFakeAccountRepo(accounts ...*models.SocialAccount) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: make(map[int64]*models.SocialAccount)}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *fakeAccountRepo) Create(_ context.Context, _ *sql.Tx, sa *models.SocialAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[sa.ID] = sa
	return sa.ID, nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAccountRepo) ListByUserID(_ context.Context, userID int64) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, a := range r.accounts {
		if a.UserID == userID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAccountRepo) ListByTimeInterval(_ context.Context, from, to time.Time) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, a := range r.accounts {
		if !a.TokenExpiresAt.Before(from) && !a.TokenExpiresAt.After(to) {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) CountOwned(_ context.Context, userID int64, accountIDs []int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, id := range accountIDs {
		if a, ok := r.accounts[id]; ok && a.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakeAccountRepo) CheckByUserID(_ context.Context, accountID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	return ok && a.UserID == userID, nil
}

func (r *fakeAccountRepo) SetToken(_ context.Context, _ int64, _ string, _ *models.SocialAccount) error {
	return nil
}

func (r *fakeAccountRepo) Remove(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	return nil
}

type fakeFileRepo struct {
	mu     sync.Mutex
	nextID int64
	files  map[int64]*models.DriveFile
}

func newFakeFileRepo(files ...*models.DriveFile) *fakeFileRepo {
	r := &fakeFileRepo{files: make(map[int64]*models.DriveFile)}
	for _, f := range files {
		r.files[f.ID] = f
		if f.ID > r.nextID {
			r.nextID = f.ID
		}
	}
	return r
}

func (r *fakeFileRepo) Create(_ context.Context, f *models.DriveFile) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	copied := *f
	copied.ID = r.nextID
	r.files[copied.ID] = &copied
	return copied.ID, nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, id int64) (*models.DriveFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, nil
	}
	copied := *f
	return &copied, nil
}

func (r *fakeFileRepo) ListAvailable(_ context.Context, userID int64, folderIDs []int64, filter *repository.DriveFileFilter) ([]*models.DriveFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inSet := make(map[int64]struct{}, len(folderIDs))
	for _, id := range folderIDs {
		inSet[id] = struct{}{}
	}

	var out []*models.DriveFile
	for _, f := range r.files {
		if f.UserID != userID || !f.Available || f.Blacklisted {
			continue
		}
		if _, ok := inSet[f.FolderID]; !ok {
			continue
		}
		if filter != nil && filter.FileType != "" && f.FileType != filter.FileType {
			continue
		}
		copied := *f
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeFileRepo) SetBlacklisted(_ context.Context, userID, id int64, blacklisted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.files[id]; ok && f.UserID == userID {
		f.Blacklisted = blacklisted
	}
	return nil
}

func (r *fakeFileRepo) Remove(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, id)
	return nil
}

type fakeStateRepo struct {
	mu    sync.Mutex
	state models.ProcessorState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{state: models.ProcessorState{ID: 1}}
}

func (r *fakeStateRepo) TryBeginRun(_ context.Context, runID string, heartbeatCutoff time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.IsRunning && r.state.LastHeartbeat != nil && !r.state.LastHeartbeat.Before(heartbeatCutoff) {
		return false, nil
	}
	now := time.Now()
	r.state.IsRunning = true
	r.state.RunID = runID
	r.state.LastHeartbeat = &now
	r.state.UpdatedAt = now
	return true, nil
}

func (r *fakeStateRepo) Heartbeat(_ context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.RunID == runID {
		now := time.Now()
		r.state.LastHeartbeat = &now
	}
	return nil
}

func (r *fakeStateRepo) FinishRun(_ context.Context, runID string, itemsProcessed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.RunID != runID {
		return nil
	}
	now := time.Now()
	r.state.IsRunning = false
	r.state.LastRunAt = &now
	r.state.ItemsLastRun = itemsProcessed
	r.state.UpdatedAt = now
	return nil
}

func (r *fakeStateRepo) Get(_ context.Context) (*models.ProcessorState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := r.state
	return &copied, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	records []*models.PostingHistory
}

func newFakeHistoryRepo(records ...*models.PostingHistory) *fakeHistoryRepo {
	return &fakeHistoryRepo{records: records}
}

func (r *fakeHistoryRepo) Create(_ context.Context, ph *models.PostingHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	copied := *ph
	copied.ID = r.nextID
	r.records = append(r.records, &copied)
	return copied.ID, nil
}

func (r *fakeHistoryRepo) ListByUserSince(_ context.Context, userID int64, since time.Time) ([]*models.PostingHistory, error) {
	return r.list(userID, "", since), nil
}

func (r *fakeHistoryRepo) ListByUserPlatformSince(_ context.Context, userID int64, platform string, since time.Time) ([]*models.PostingHistory, error) {
	return r.list(userID, platform, since), nil
}

func (r *fakeHistoryRepo) list(userID int64, platform string, since time.Time) []*models.PostingHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostingHistory
	for _, rec := range r.records {
		if rec.UserID != userID || rec.PostedAt.Before(since) {
			continue
		}
		if platform != "" && rec.Platform != platform {
			continue
		}
		copied := *rec
		out = append(out, &copied)
	}
	return out
}

// fakePublisher succeeds unless an error is scripted for the account.
type fakePublisher struct {
	mu    sync.Mutex
	errs  map[int64]error
	calls []int64
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{errs: make(map[int64]error)}
}

func (p *fakePublisher) fail(accountID int64, err error) {
	p.errs[accountID] = err
}

func (p *fakePublisher) Publish(_ context.Context, account *models.SocialAccount, _ *PublishContent) (*PublishResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, account.ID)
	p.mu.Unlock()

	if err := p.errs[account.ID]; err != nil {
		return nil, err
	}
	return &PublishResult{PlatformPostID: fmt.Sprintf("post-%d", account.ID)}, nil
}
