package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/transfer"
)

// AnalyticsService aggregates posting history into advisory read models. It
// never writes; the history table is only appended to by the processor.
type AnalyticsService interface {
	GetPostingPatterns(ctx context.Context, userID int64, days int) (*transfer.PostingPatterns, error)
	CalculateOptimalTimes(ctx context.Context, userID int64, platform string) ([]transfer.OptimalTime, error)
	GetContentPerformance(ctx context.Context, userID int64, days int) (*transfer.ContentPerformance, error)
}

type analyticsService struct {
	hr  repository.PostingHistoryRepository
	now func() time.Time
}

func NewAnalyticsService(hr repository.PostingHistoryRepository) AnalyticsService {
	return &analyticsService{hr: hr, now: time.Now}
}

func (s *analyticsService) GetPostingPatterns(ctx context.Context, userID int64, days int) (*transfer.PostingPatterns, error) {
	if days <= 0 {
		return nil, apperr.Validation("days must be at least 1")
	}

	since := s.now().AddDate(0, 0, -days)
	records, err := s.hr.ListByUserSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("error loading posting history: %w", err)
	}

	patterns := &transfer.PostingPatterns{
		ByHour:      make(map[int]int),
		ByDayOfWeek: make(map[int]int),
		ByPlatform:  make(map[string]int),
	}

	for _, r := range records {
		if !r.Success() {
			continue
		}
		at := r.PostedAt.UTC()
		patterns.ByHour[at.Hour()]++
		patterns.ByDayOfWeek[int(at.Weekday())]++
		patterns.ByPlatform[r.Platform]++
		patterns.TotalPosts++
	}

	// Earliest value wins ties.
	best := -1
	for hour := 0; hour < 24; hour++ {
		if patterns.ByHour[hour] > best {
			best = patterns.ByHour[hour]
			patterns.MostActiveHour = hour
		}
	}
	best = -1
	for day := 0; day < 7; day++ {
		if patterns.ByDayOfWeek[day] > best {
			best = patterns.ByDayOfWeek[day]
			patterns.MostActiveDay = day
		}
	}

	return patterns, nil
}

func (s *analyticsService) CalculateOptimalTimes(ctx context.Context, userID int64, platform string) ([]transfer.OptimalTime, error) {
	since := s.now().AddDate(0, 0, -90)

	var records []*models.PostingHistory
	var err error
	if platform != "" {
		records, err = s.hr.ListByUserPlatformSince(ctx, userID, platform, since)
	} else {
		records, err = s.hr.ListByUserSince(ctx, userID, since)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading posting history: %w", err)
	}

	type bucketKey struct {
		day      int
		hour     int
		platform string
	}
	type bucket struct {
		total float64
		count int
	}

	buckets := make(map[bucketKey]*bucket)
	for _, r := range records {
		if !r.Success() {
			continue
		}
		at := r.PostedAt.UTC()
		key := bucketKey{day: int(at.Weekday()), hour: at.Hour(), platform: r.Platform}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.total += r.Engagement
		b.count++
	}

	times := make([]transfer.OptimalTime, 0, len(buckets))
	for key, b := range buckets {
		times = append(times, transfer.OptimalTime{
			DayOfWeek: key.day,
			Hour:      key.hour,
			Platform:  key.platform,
			Score:     b.total / float64(b.count),
		})
	}

	sort.Slice(times, func(i, j int) bool {
		a, b := times[i], times[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		return a.Hour < b.Hour
	})
	return times, nil
}

func (s *analyticsService) GetContentPerformance(ctx context.Context, userID int64, days int) (*transfer.ContentPerformance, error) {
	if days <= 0 {
		return nil, apperr.Validation("days must be at least 1")
	}

	since := s.now().AddDate(0, 0, -days)
	records, err := s.hr.ListByUserSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("error loading posting history: %w", err)
	}

	type stats struct {
		count int
		total float64
	}
	byType := make(map[string]*stats)
	var top []transfer.TopPost

	for _, r := range records {
		if !r.Success() {
			continue
		}
		st, ok := byType[r.ContentType]
		if !ok {
			st = &stats{}
			byType[r.ContentType] = st
		}
		st.count++
		st.total += r.Engagement
		top = append(top, transfer.TopPost{ItemID: r.ItemID, Platform: r.Platform, Engagement: r.Engagement})
	}

	performance := &transfer.ContentPerformance{}
	for contentType, st := range byType {
		performance.ByContentType = append(performance.ByContentType, transfer.ContentTypeStats{
			ContentType:   contentType,
			Count:         st.count,
			AvgEngagement: st.total / float64(st.count),
		})
	}
	sort.Slice(performance.ByContentType, func(i, j int) bool {
		return performance.ByContentType[i].ContentType < performance.ByContentType[j].ContentType
	})

	sort.Slice(top, func(i, j int) bool {
		if top[i].Engagement != top[j].Engagement {
			return top[i].Engagement > top[j].Engagement
		}
		return top[i].ItemID < top[j].ItemID
	})
	if len(top) > 10 {
		top = top[:10]
	}
	performance.TopPosts = top

	return performance, nil
}
