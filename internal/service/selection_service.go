package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
)

type SelectionOptions struct {
	Strategy string
	FileType string
}

// SelectionService picks pooled content for items without fixed media. It is
// side-effect free: consuming the returned files (use_count, last_used_at)
// is the processor's transaction.
type SelectionService interface {
	SelectFiles(ctx context.Context, userID int64, folderIDs []int64, count int, opts *SelectionOptions) ([]*models.DriveFile, error)
}

type selectionService struct {
	fr repository.DriveFileRepository

	mu      sync.Mutex
	cursors map[string]int
}

func NewSelectionService(fr repository.DriveFileRepository) SelectionService {
	return &selectionService{
		fr:      fr,
		cursors: make(map[string]int),
	}
}

func (s *selectionService) SelectFiles(ctx context.Context, userID int64, folderIDs []int64, count int, opts *SelectionOptions) ([]*models.DriveFile, error) {
	if count <= 0 {
		return nil, apperr.Validation("count must be at least 1")
	}
	if len(folderIDs) == 0 {
		return nil, apperr.Validation("at least one folder is required")
	}

	strategy := models.SelectionStrategyRandom
	var filter *repository.DriveFileFilter
	if opts != nil {
		if opts.Strategy != "" {
			strategy = opts.Strategy
		}
		if opts.FileType != "" {
			filter = &repository.DriveFileFilter{FileType: opts.FileType}
		}
	}
	if !models.IsSelectionStrategy(strategy) {
		return nil, apperr.Validation("unknown selection strategy %q", strategy)
	}

	candidates, err := s.fr.ListAvailable(ctx, userID, folderIDs, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w in folders %v", apperr.ErrNoCandidates, folderIDs)
	}

	if count > len(candidates) {
		count = len(candidates)
	}

	switch strategy {
	case models.SelectionStrategyLRU:
		return selectLRU(candidates, count), nil
	case models.SelectionStrategyRoundRobin:
		return s.selectRoundRobin(candidates, folderIDs, count), nil
	default:
		return selectRandom(candidates, count), nil
	}
}

// selectRandom picks uniformly without replacement within the call.
func selectRandom(candidates []*models.DriveFile, count int) []*models.DriveFile {
	shuffled := append([]*models.DriveFile(nil), candidates...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:count]
}

// selectLRU orders by last_used_at ascending with never-used files first,
// breaking ties on use_count then id.
func selectLRU(candidates []*models.DriveFile, count int) []*models.DriveFile {
	ordered := append([]*models.DriveFile(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		switch {
		case a.LastUsedAt == nil && b.LastUsedAt != nil:
			return true
		case a.LastUsedAt != nil && b.LastUsedAt == nil:
			return false
		case a.LastUsedAt != nil && b.LastUsedAt != nil && !a.LastUsedAt.Equal(*b.LastUsedAt):
			return a.LastUsedAt.Before(*b.LastUsedAt)
		}
		if a.UseCount != b.UseCount {
			return a.UseCount < b.UseCount
		}
		return a.ID < b.ID
	})
	return ordered[:count]
}

// selectRoundRobin rotates across the folder set, advancing a per-set cursor
// each call so consecutive calls start from the next folder.
func (s *selectionService) selectRoundRobin(candidates []*models.DriveFile, folderIDs []int64, count int) []*models.DriveFile {
	byFolder := make(map[int64][]*models.DriveFile)
	for _, f := range candidates {
		byFolder[f.FolderID] = append(byFolder[f.FolderID], f)
	}

	folders := make([]int64, 0, len(byFolder))
	for id := range byFolder {
		folders = append(folders, id)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i] < folders[j] })
	for _, id := range folders {
		files := byFolder[id]
		sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	}

	key := roundRobinKey(folderIDs)
	s.mu.Lock()
	start := s.cursors[key]
	s.cursors[key] = start + 1
	s.mu.Unlock()

	offsets := make(map[int64]int, len(folders))
	var picked []*models.DriveFile
	for i := 0; len(picked) < count; i++ {
		folder := folders[(start+i)%len(folders)]
		files := byFolder[folder]
		if offsets[folder] >= len(files) {
			// Folder exhausted; stop once every folder is.
			done := true
			for _, id := range folders {
				if offsets[id] < len(byFolder[id]) {
					done = false
					break
				}
			}
			if done {
				break
			}
			continue
		}
		picked = append(picked, files[offsets[folder]])
		offsets[folder]++
	}
	return picked
}

func roundRobinKey(folderIDs []int64) string {
	sorted := append([]int64(nil), folderIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	key := ""
	for _, id := range sorted {
		key += strconv.FormatInt(id, 10) + ","
	}
	return key
}
