package service

import (
	"context"
	"testing"
	"time"

	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyticsForTest(hr *fakeHistoryRepo, at time.Time) AnalyticsService {
	svc := NewAnalyticsService(hr)
	svc.(*analyticsService).now = func() time.Time { return at }
	return svc
}

func historyRecord(platform, contentType string, at time.Time, engagement float64) *models.PostingHistory {
	return &models.PostingHistory{
		UserID:      1,
		Platform:    platform,
		ContentType: contentType,
		Engagement:  engagement,
		PostedAt:    at,
	}
}

func TestGetPostingPatterns(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	// 2024-03-11 is a Monday.
	mon9 := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	failed := historyRecord("tiktok", "text", mon9, 0)
	failed.ErrorMessage = "rate limited"

	hr := newFakeHistoryRepo(
		historyRecord("youtube", "pooled", mon9, 10),
		historyRecord("youtube", "pooled", mon9.Add(time.Hour), 20),
		historyRecord("instagram", "text", mon9.Add(24*time.Hour), 5),
		failed,
		historyRecord("youtube", "pooled", now.AddDate(0, 0, -60), 99), // outside window
	)
	svc := newAnalyticsForTest(hr, now)

	patterns, err := svc.GetPostingPatterns(context.Background(), 1, 30)
	require.NoError(t, err)

	assert.Equal(t, 3, patterns.TotalPosts)
	assert.Equal(t, 2, patterns.ByHour[9])
	assert.Equal(t, 1, patterns.ByHour[10])
	assert.Equal(t, 2, patterns.ByDayOfWeek[1])
	assert.Equal(t, 1, patterns.ByDayOfWeek[2])
	assert.Equal(t, 2, patterns.ByPlatform["youtube"])
	assert.Equal(t, 1, patterns.ByPlatform["instagram"])
	assert.Zero(t, patterns.ByPlatform["tiktok"])
	assert.Equal(t, 9, patterns.MostActiveHour)
	assert.Equal(t, 1, patterns.MostActiveDay)
}

func TestGetPostingPatternsValidation(t *testing.T) {
	svc := newAnalyticsForTest(newFakeHistoryRepo(), time.Now())

	_, err := svc.GetPostingPatterns(context.Background(), 1, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGetPostingPatternsTieGoesToEarliestHour(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	hr := newFakeHistoryRepo(
		historyRecord("youtube", "text", now.Add(-30*time.Hour), 0),
		historyRecord("youtube", "text", now.Add(-54*time.Hour), 0),
	)
	svc := newAnalyticsForTest(hr, now)

	patterns, err := svc.GetPostingPatterns(context.Background(), 1, 30)
	require.NoError(t, err)
	// Both posts land on hour 6; any tied empty hour must not win.
	assert.Equal(t, 6, patterns.MostActiveHour)
}

func TestCalculateOptimalTimesOrdering(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	mon9 := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	hr := newFakeHistoryRepo(
		historyRecord("youtube", "pooled", mon9, 10),
		historyRecord("youtube", "pooled", mon9.AddDate(0, 0, -7), 30), // same bucket, avg 20
		historyRecord("youtube", "pooled", mon9.Add(3*time.Hour), 50),
		historyRecord("instagram", "text", mon9.Add(24*time.Hour), 20),
	)
	svc := newAnalyticsForTest(hr, now)

	times, err := svc.CalculateOptimalTimes(context.Background(), 1, "")
	require.NoError(t, err)
	require.Len(t, times, 3)

	assert.Equal(t, 12, times[0].Hour)
	assert.Equal(t, 50.0, times[0].Score)

	// Scores tie at 20; Monday sorts before Tuesday.
	assert.Equal(t, 20.0, times[1].Score)
	assert.Equal(t, 1, times[1].DayOfWeek)
	assert.Equal(t, 9, times[1].Hour)
	assert.Equal(t, 2, times[2].DayOfWeek)
}

func TestCalculateOptimalTimesPlatformFilter(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	mon9 := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	hr := newFakeHistoryRepo(
		historyRecord("youtube", "pooled", mon9, 10),
		historyRecord("instagram", "text", mon9, 99),
	)
	svc := newAnalyticsForTest(hr, now)

	times, err := svc.CalculateOptimalTimes(context.Background(), 1, "youtube")
	require.NoError(t, err)
	require.Len(t, times, 1)
	assert.Equal(t, "youtube", times[0].Platform)
}

func TestGetContentPerformance(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	failed := historyRecord("youtube", "pooled", now.Add(-time.Hour), 100)
	failed.ErrorMessage = "rejected"

	a := historyRecord("youtube", "pooled", now.Add(-2*time.Hour), 10)
	a.ItemID = 1
	b := historyRecord("youtube", "pooled", now.Add(-3*time.Hour), 30)
	b.ItemID = 2
	c := historyRecord("instagram", "text", now.Add(-4*time.Hour), 30)
	c.ItemID = 3

	hr := newFakeHistoryRepo(a, b, c, failed)
	svc := newAnalyticsForTest(hr, now)

	performance, err := svc.GetContentPerformance(context.Background(), 1, 7)
	require.NoError(t, err)

	require.Len(t, performance.ByContentType, 2)
	assert.Equal(t, "pooled", performance.ByContentType[0].ContentType)
	assert.Equal(t, 2, performance.ByContentType[0].Count)
	assert.Equal(t, 20.0, performance.ByContentType[0].AvgEngagement)
	assert.Equal(t, "text", performance.ByContentType[1].ContentType)

	require.Len(t, performance.TopPosts, 3)
	// Engagement ties break on the lower item id.
	assert.Equal(t, int64(2), performance.TopPosts[0].ItemID)
	assert.Equal(t, int64(3), performance.TopPosts[1].ItemID)
	assert.Equal(t, int64(1), performance.TopPosts[2].ItemID)

	_, err = svc.GetContentPerformance(context.Background(), 1, -1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
