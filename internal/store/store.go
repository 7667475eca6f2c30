// Package store persists simulation runs and their spike rasters.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/lifnet/internal/neuron"
	"github.com/nvandessel/lifnet/internal/raster"
)

// ErrNotFound is returned when a run ID does not exist.
var ErrNotFound = errors.New("run not found")

// Run describes one completed simulation.
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Seed replays the run when fed back to the simulator.
	Seed uint64 `json:"seed"`

	Neurons        int           `json:"neurons"`
	ConnectionProb float64       `json:"connection_prob"`
	Edges          int           `json:"edges"`
	Duration       float64       `json:"duration_ms"`
	Steps          int           `json:"steps"`
	Params         neuron.Params `json:"params"`

	Spikes  int           `json:"spikes"`
	Elapsed time.Duration `json:"elapsed"`
	Output  string        `json:"output,omitempty"`
	Format  string        `json:"format,omitempty"`
	Label   string        `json:"label,omitempty"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RunStore defines the interface for recording and querying runs.
type RunStore interface {
	// SaveRun stores run and its spikes atomically. An empty run.ID is
	// filled in. Returns the run ID.
	SaveRun(ctx context.Context, run Run, spikes []raster.Event) (string, error)

	// GetRun returns the run with id or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first. limit <= 0 means no limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// LoadSpikes returns the spikes of run id in emission order.
	LoadSpikes(ctx context.Context, id string) ([]raster.Event, error)

	// DeleteRun removes a run and its spikes.
	DeleteRun(ctx context.Context, id string) error

	Close() error
}

// ResolveID expands a unique ID prefix to a full run ID. It lets users type
// the first few characters shown by "lifnet runs".
func ResolveID(ctx context.Context, s RunStore, prefix string) (string, error) {
	if prefix == "" {
		return "", ErrNotFound
	}
	if _, err := uuid.Parse(prefix); err == nil {
		return prefix, nil
	}
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return "", err
	}
	match := ""
	for _, r := range runs {
		if len(r.ID) >= len(prefix) && r.ID[:len(prefix)] == prefix {
			if match != "" {
				return "", errors.New("ambiguous run ID prefix " + prefix)
			}
			match = r.ID
		}
	}
	if match == "" {
		return "", ErrNotFound
	}
	return match, nil
}
