package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nvandessel/lifnet/internal/raster"
)

// InMemoryRunStore implements RunStore for testing and for runs that
// should not touch disk.
type InMemoryRunStore struct {
	mu     sync.RWMutex
	runs   map[string]Run
	spikes map[string][]raster.Event
}

// NewInMemoryRunStore creates a new in-memory store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs:   make(map[string]Run),
		spikes: make(map[string][]raster.Event),
	}
}

// SaveRun stores a copy of run and spikes.
func (s *InMemoryRunStore) SaveRun(ctx context.Context, run Run, spikes []raster.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = NewRunID()
	}
	if _, exists := s.runs[run.ID]; exists {
		return "", fmt.Errorf("run already exists: %s", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.Spikes = len(spikes)

	s.runs[run.ID] = run
	s.spikes[run.ID] = slices.Clone(spikes)
	return run.ID, nil
}

// GetRun retrieves a run by ID.
func (s *InMemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &r, nil
}

// ListRuns returns runs newest first.
func (s *InMemoryRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	slices.SortFunc(runs, func(a, b Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// LoadSpikes returns a copy of the stored spikes.
func (s *InMemoryRunStore) LoadSpikes(ctx context.Context, id string) ([]raster.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.spikes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return slices.Clone(ev), nil
}

// DeleteRun removes a run.
func (s *InMemoryRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.runs, id)
	delete(s.spikes, id)
	return nil
}

// Close is a no-op.
func (s *InMemoryRunStore) Close() error {
	return nil
}
