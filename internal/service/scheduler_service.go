package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type SchedulerService interface {
	CreateSchedule(ctx context.Context, userID int64, sc *transfer.ScheduleCreation) (int64, error)
	UpdateSchedule(ctx context.Context, userID, scheduleID int64, sc *transfer.ScheduleCreation) error
	ToggleSchedule(ctx context.Context, userID, scheduleID int64) (bool, error)
	DeleteSchedule(ctx context.Context, userID, scheduleID int64) error
	List(ctx context.Context, userID int64) ([]*models.Schedule, error)
	PreviewSchedule(ctx context.Context, userID, scheduleID int64, horizonDays int) (*transfer.SchedulePreview, error)
	SuggestSlots(ctx context.Context, userID int64, count int) ([]transfer.SlotSuggestion, error)
	ExpandDue(ctx context.Context) (int, error)
}

type schedulerService struct {
	cfg config.Config
	sr  repository.ScheduleRepository
	ar  repository.SocialAccountRepository
	qs  QueueService
	as  AnalyticsService
	now func() time.Time
}

func NewSchedulerService(
	cfg config.Config,
	sr repository.ScheduleRepository,
	ar repository.SocialAccountRepository,
	qs QueueService,
	as AnalyticsService) SchedulerService {
	return &schedulerService{
		cfg: cfg,
		sr:  sr,
		ar:  ar,
		qs:  qs,
		as:  as,
		now: time.Now,
	}
}

func validateScheduleCreation(sc *transfer.ScheduleCreation) error {
	if sc == nil {
		return apperr.Validation("schedule data is nil")
	}
	if sc.Name == "" {
		return apperr.Validation("name cannot be empty")
	}
	if len(sc.Slots) == 0 {
		return apperr.Validation("at least one time slot is required")
	}
	for _, slot := range sc.Slots {
		if slot.Hour < 0 || slot.Hour > 23 {
			return apperr.Validation("slot hour %d out of range", slot.Hour)
		}
		if slot.Minute < 0 || slot.Minute > 59 {
			return apperr.Validation("slot minute %d out of range", slot.Minute)
		}
		if _, err := time.LoadLocation(slot.Timezone); err != nil {
			return apperr.Validation("unknown timezone %q", slot.Timezone)
		}
	}
	for _, d := range sc.DaysOfWeek {
		if d < 0 || d > 6 {
			return apperr.Validation("day of week %d out of range", d)
		}
	}
	if len(sc.AccountIDs) == 0 {
		return apperr.Validation("at least one target account is required")
	}
	if !models.IsSourceType(sc.SourceType) {
		return apperr.Validation("unknown source type %q", sc.SourceType)
	}
	if sc.MaxPostsPerDay < 0 {
		return apperr.Validation("max_posts_per_day cannot be negative")
	}
	if sc.MinHoursBetween < 0 {
		return apperr.Validation("min_hours_between_posts cannot be negative")
	}
	return nil
}

func (s *schedulerService) CreateSchedule(ctx context.Context, userID int64, sc *transfer.ScheduleCreation) (int64, error) {
	if err := validateScheduleCreation(sc); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	owned, err := s.ar.CountOwned(ctx, userID, sc.AccountIDs)
	if err != nil {
		return 0, fmt.Errorf("error checking target accounts: %w", err)
	}
	if owned != len(sc.AccountIDs) {
		return 0, apperr.Validation("one or more target accounts do not belong to the user")
	}

	scheduleType := sc.ScheduleType
	if scheduleType == "" {
		scheduleType = models.ScheduleTypeRecurring
	}

	schedule := models.Schedule{
		UserID:          userID,
		Name:            sc.Name,
		ScheduleType:    scheduleType,
		Slots:           sc.Slots,
		DaysOfWeek:      sc.DaysOfWeek,
		SourceType:      sc.SourceType,
		SourceConfig:    sc.SourceConfig,
		AccountIDs:      sc.AccountIDs,
		TemplateID:      sc.TemplateID,
		MaxPostsPerDay:  sc.MaxPostsPerDay,
		MinHoursBetween: sc.MinHoursBetween,
		IsActive:        true,
	}

	id, err := s.sr.Create(ctx, &schedule)
	if err != nil {
		return 0, fmt.Errorf("error creating schedule: %w", err)
	}
	return id, nil
}

func (s *schedulerService) getOwned(ctx context.Context, userID, scheduleID int64) (*models.Schedule, error) {
	schedule, err := s.sr.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil || schedule.UserID != userID {
		return nil, apperr.NotFound("schedule %d", scheduleID)
	}
	return schedule, nil
}

func (s *schedulerService) UpdateSchedule(ctx context.Context, userID, scheduleID int64, sc *transfer.ScheduleCreation) error {
	if err := validateScheduleCreation(sc); err != nil {
		slog.Info(err.Error())
		return err
	}

	schedule, err := s.getOwned(ctx, userID, scheduleID)
	if err != nil {
		return err
	}

	owned, err := s.ar.CountOwned(ctx, userID, sc.AccountIDs)
	if err != nil {
		return fmt.Errorf("error checking target accounts: %w", err)
	}
	if owned != len(sc.AccountIDs) {
		return apperr.Validation("one or more target accounts do not belong to the user")
	}

	schedule.Name = sc.Name
	if sc.ScheduleType != "" {
		schedule.ScheduleType = sc.ScheduleType
	}
	schedule.Slots = sc.Slots
	schedule.DaysOfWeek = sc.DaysOfWeek
	schedule.SourceType = sc.SourceType
	schedule.SourceConfig = sc.SourceConfig
	schedule.AccountIDs = sc.AccountIDs
	schedule.TemplateID = sc.TemplateID
	schedule.MaxPostsPerDay = sc.MaxPostsPerDay
	schedule.MinHoursBetween = sc.MinHoursBetween

	if err := s.sr.Update(ctx, schedule); err != nil {
		return fmt.Errorf("error updating schedule: %w", err)
	}
	return nil
}

func (s *schedulerService) ToggleSchedule(ctx context.Context, userID, scheduleID int64) (bool, error) {
	schedule, err := s.getOwned(ctx, userID, scheduleID)
	if err != nil {
		return false, err
	}

	active := !schedule.IsActive
	if err := s.sr.SetActive(ctx, scheduleID, active); err != nil {
		return false, fmt.Errorf("error toggling schedule: %w", err)
	}
	return active, nil
}

// DeleteSchedule hard-deletes the definition. Already-materialized items stay
// untouched unless the cascade policy is enabled.
func (s *schedulerService) DeleteSchedule(ctx context.Context, userID, scheduleID int64) error {
	if _, err := s.getOwned(ctx, userID, scheduleID); err != nil {
		return err
	}

	if s.cfg.Queue.CascadeOnScheduleDelete {
		cancelled, err := s.qs.CancelPendingBySchedule(ctx, scheduleID)
		if err != nil {
			return fmt.Errorf("error cancelling scheduled items: %w", err)
		}
		if cancelled > 0 {
			slog.Info(fmt.Sprintf("cancelled %d queued items for schedule %d", cancelled, scheduleID))
		}
	}

	if err := s.sr.Remove(ctx, scheduleID); err != nil {
		return fmt.Errorf("error removing schedule: %w", err)
	}
	return nil
}

func (s *schedulerService) List(ctx context.Context, userID int64) ([]*models.Schedule, error) {
	schedules, err := s.sr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing schedules: %w", err)
	}
	return schedules, nil
}

func (s *schedulerService) PreviewSchedule(ctx context.Context, userID, scheduleID int64, horizonDays int) (*transfer.SchedulePreview, error) {
	schedule, err := s.getOwned(ctx, userID, scheduleID)
	if err != nil {
		return nil, err
	}
	if horizonDays <= 0 {
		return nil, apperr.Validation("horizon must be at least 1 day")
	}
	return ExpandSchedule(schedule, s.now(), horizonDays), nil
}

// ExpandSchedule enumerates the instants a schedule would post over
// [from, from+horizonDays). It is pure: identical inputs yield identical
// output.
func ExpandSchedule(schedule *models.Schedule, from time.Time, horizonDays int) *transfer.SchedulePreview {
	end := from.Add(time.Duration(horizonDays) * 24 * time.Hour)

	days := make(map[int]struct{}, len(schedule.DaysOfWeek))
	for _, d := range schedule.DaysOfWeek {
		days[d] = struct{}{}
	}

	type candidate struct {
		at     time.Time
		dayKey string
	}

	// One candidate per slot per local calendar day. Each slot resolves
	// through its own timezone, so the day grid is computed per slot.
	var candidates []candidate
	for _, slot := range schedule.Slots {
		loc, err := time.LoadLocation(slot.Timezone)
		if err != nil {
			continue
		}
		start := from.In(loc)
		for i := 0; i <= horizonDays; i++ {
			day := start.AddDate(0, 0, i)
			at := time.Date(day.Year(), day.Month(), day.Day(), slot.Hour, slot.Minute, 0, 0, loc)
			if at.Before(from) || !at.Before(end) {
				continue
			}
			if len(days) > 0 {
				if _, ok := days[int(at.Weekday())]; !ok {
					continue
				}
			}
			candidates = append(candidates, candidate{at: at, dayKey: at.Format("2006-01-02")})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].at.Before(candidates[j].at)
	})

	minGap := time.Duration(schedule.MinHoursBetween) * time.Hour
	perDay := make(map[string]int)
	var kept []time.Time
	for _, c := range candidates {
		if schedule.MaxPostsPerDay > 0 && perDay[c.dayKey] >= schedule.MaxPostsPerDay {
			continue
		}
		if minGap > 0 && len(kept) > 0 && c.at.Sub(kept[len(kept)-1]) < minGap {
			continue
		}
		kept = append(kept, c.at)
		perDay[c.dayKey]++
	}

	return &transfer.SchedulePreview{
		Timestamps: kept,
		PerDay:     perDay,
		Total:      len(kept),
	}
}

// ExpandDue materializes queue items for every active schedule over the
// configured look-ahead horizon. Instants already materialized for a
// schedule are skipped, so the expansion is idempotent.
func (s *schedulerService) ExpandDue(ctx context.Context) (int, error) {
	schedules, err := s.sr.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("error listing active schedules: %w", err)
	}

	horizon := s.cfg.Queue.ExpansionHorizonHours
	if horizon <= 0 {
		horizon = 24
	}
	horizonDays := (horizon + 23) / 24
	now := s.now()
	end := now.Add(time.Duration(horizon) * time.Hour)

	created := 0
	for _, schedule := range schedules {
		preview := ExpandSchedule(schedule, now, horizonDays)
		for _, at := range preview.Timestamps {
			if !at.Before(end) {
				continue
			}
			materialized, err := s.qs.MaterializeScheduleItem(ctx, schedule, at)
			if err != nil {
				slog.Info(err.Error())
				continue
			}
			if materialized {
				created++
			}
		}
	}
	return created, nil
}

// SuggestSlots turns the analytics engine's optimal-time ranking into
// advisory default slots. They are never applied automatically.
func (s *schedulerService) SuggestSlots(ctx context.Context, userID int64, count int) ([]transfer.SlotSuggestion, error) {
	if count <= 0 {
		count = 3
	}

	optimal, err := s.as.CalculateOptimalTimes(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("error calculating optimal times: %w", err)
	}

	suggestions := make([]transfer.SlotSuggestion, 0, count)
	for _, ot := range optimal {
		if len(suggestions) >= count {
			break
		}
		suggestions = append(suggestions, transfer.SlotSuggestion{
			Slot:  models.TimeSlot{Hour: ot.Hour, Minute: 0, Timezone: "UTC"},
			Score: ot.Score,
		})
	}
	return suggestions, nil
}
