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

func poolFile(id, folderID int64, useCount int, lastUsed *time.Time) *models.DriveFile {
	return &models.DriveFile{
		ID:         id,
		UserID:     1,
		FolderID:   folderID,
		FileURL:    "https://cdn/file",
		FileType:   "video/mp4",
		Available:  true,
		UseCount:   useCount,
		LastUsedAt: lastUsed,
	}
}

func TestSelectFilesValidation(t *testing.T) {
	svc := NewSelectionService(newFakeFileRepo())

	_, err := svc.SelectFiles(context.Background(), 1, []int64{5}, 0, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.SelectFiles(context.Background(), 1, nil, 1, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.SelectFiles(context.Background(), 1, []int64{5}, 1, &SelectionOptions{Strategy: "newest"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSelectFilesEmptyPool(t *testing.T) {
	svc := NewSelectionService(newFakeFileRepo())

	_, err := svc.SelectFiles(context.Background(), 1, []int64{5}, 1, nil)
	assert.ErrorIs(t, err, apperr.ErrNoCandidates)
}

func TestSelectFilesSkipsIneligibleCandidates(t *testing.T) {
	blacklisted := poolFile(1, 5, 0, nil)
	blacklisted.Blacklisted = true
	unavailable := poolFile(2, 5, 0, nil)
	unavailable.Available = false
	foreign := poolFile(3, 5, 0, nil)
	foreign.UserID = 2

	svc := NewSelectionService(newFakeFileRepo(blacklisted, unavailable, foreign, poolFile(4, 5, 0, nil)))

	files, err := svc.SelectFiles(context.Background(), 1, []int64{5}, 10, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(4), files[0].ID)
}

func TestSelectFilesClampsCountToPoolSize(t *testing.T) {
	svc := NewSelectionService(newFakeFileRepo(poolFile(1, 5, 0, nil), poolFile(2, 5, 0, nil)))

	files, err := svc.SelectFiles(context.Background(), 1, []int64{5}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestSelectFilesRandomReturnsDistinctCandidates(t *testing.T) {
	svc := NewSelectionService(newFakeFileRepo(
		poolFile(1, 5, 0, nil), poolFile(2, 5, 0, nil), poolFile(3, 5, 0, nil),
	))

	files, err := svc.SelectFiles(context.Background(), 1, []int64{5}, 2, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.NotEqual(t, files[0].ID, files[1].ID)
}

func TestSelectFilesLRUOrdering(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	svc := NewSelectionService(newFakeFileRepo(
		poolFile(1, 5, 3, &newer),
		poolFile(2, 5, 1, &older),
		poolFile(3, 5, 5, nil), // never used, first regardless of use count
		poolFile(4, 5, 0, nil),
	))

	files, err := svc.SelectFiles(context.Background(), 1, []int64{5}, 4, &SelectionOptions{
		Strategy: models.SelectionStrategyLRU,
	})
	require.NoError(t, err)

	got := []int64{files[0].ID, files[1].ID, files[2].ID, files[3].ID}
	// Never-used files ordered by use count, then used ones oldest first.
	assert.Equal(t, []int64{4, 3, 2, 1}, got)
}

func TestSelectFilesRoundRobinAlternatesFolders(t *testing.T) {
	svc := NewSelectionService(newFakeFileRepo(
		poolFile(1, 5, 0, nil),
		poolFile(2, 5, 0, nil),
		poolFile(3, 6, 0, nil),
		poolFile(4, 6, 0, nil),
	))

	files, err := svc.SelectFiles(context.Background(), 1, []int64{5, 6}, 4, &SelectionOptions{
		Strategy: models.SelectionStrategyRoundRobin,
	})
	require.NoError(t, err)

	got := []int64{files[0].ID, files[1].ID, files[2].ID, files[3].ID}
	assert.Equal(t, []int64{1, 3, 2, 4}, got)
}

func TestSelectFilesRoundRobinCursorAdvancesAcrossCalls(t *testing.T) {
	svc := NewSelectionService(newFakeFileRepo(
		poolFile(1, 5, 0, nil),
		poolFile(2, 6, 0, nil),
	))

	first, err := svc.SelectFiles(context.Background(), 1, []int64{5, 6}, 1, &SelectionOptions{
		Strategy: models.SelectionStrategyRoundRobin,
	})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, int64(1), first[0].ID)

	// The next call starts from the other folder.
	second, err := svc.SelectFiles(context.Background(), 1, []int64{5, 6}, 1, &SelectionOptions{
		Strategy: models.SelectionStrategyRoundRobin,
	})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, int64(2), second[0].ID)
}

func TestSelectFilesRoundRobinHandlesExhaustedFolders(t *testing.T) {
	svc := NewSelectionService(newFakeFileRepo(
		poolFile(1, 5, 0, nil),
		poolFile(2, 6, 0, nil),
		poolFile(3, 6, 0, nil),
	))

	files, err := svc.SelectFiles(context.Background(), 1, []int64{5, 6}, 3, &SelectionOptions{
		Strategy: models.SelectionStrategyRoundRobin,
	})
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestSelectFilesFileTypeFilter(t *testing.T) {
	image := poolFile(2, 5, 0, nil)
	image.FileType = "image/jpeg"

	svc := NewSelectionService(newFakeFileRepo(poolFile(1, 5, 0, nil), image))

	files, err := svc.SelectFiles(context.Background(), 1, []int64{5}, 10, &SelectionOptions{
		FileType: "image/jpeg",
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(2), files[0].ID)
}
