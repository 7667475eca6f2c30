// Package archive bundles stored runs into portable, checksummed files and
// restores them into a run store.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/lifnet/internal/raster"
	"github.com/nvandessel/lifnet/internal/sanitize"
	"github.com/nvandessel/lifnet/internal/store"
)

// Archive is the decoded payload of an archive file.
type Archive struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Runs      []ArchivedRun     `json:"runs"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ArchivedRun is one run with its full raster.
type ArchivedRun struct {
	Run    store.Run      `json:"run"`
	Spikes []raster.Event `json:"spikes"`
}

// SpikeCount returns the total number of spikes over all runs.
func (a *Archive) SpikeCount() int {
	n := 0
	for _, r := range a.Runs {
		n += len(r.Spikes)
	}
	return n
}

// Collect loads the runs named by ids from s. No ids means every run.
func Collect(ctx context.Context, s store.RunStore, ids []string) (*Archive, error) {
	if len(ids) == 0 {
		runs, err := s.ListRuns(ctx, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		for _, r := range runs {
			ids = append(ids, r.ID)
		}
	}

	a := &Archive{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Runs:      make([]ArchivedRun, 0, len(ids)),
	}
	for _, id := range ids {
		run, err := s.GetRun(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get run %s: %w", id, err)
		}
		spikes, err := s.LoadSpikes(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load spikes for %s: %w", id, err)
		}
		a.Runs = append(a.Runs, ArchivedRun{Run: *run, Spikes: spikes})
	}
	return a, nil
}

// MetaNote is the metadata key of the free-text archive note.
const MetaNote = "note"

// Create collects runs from s and writes them to path. A non-empty note is
// sanitized and recorded in the header.
func Create(ctx context.Context, s store.RunStore, ids []string, path, note string) (*Header, error) {
	a, err := Collect(ctx, s, ids)
	if err != nil {
		return nil, err
	}
	if note = sanitize.Note(note); note != "" {
		a.Metadata = map[string]string{MetaNote: note}
	}
	return Write(path, a)
}

// RestoreMode controls how restore handles runs that already exist.
type RestoreMode string

const (
	// RestoreMerge skips runs whose ID is already stored (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace deletes an existing run before restoring it.
	RestoreReplace RestoreMode = "replace"
)

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	RunsRestored   int `json:"runs_restored"`
	RunsSkipped    int `json:"runs_skipped"`
	SpikesRestored int `json:"spikes_restored"`
}

// Restore verifies the archive at path and saves its runs into s.
func Restore(ctx context.Context, s store.RunStore, path string, mode RestoreMode) (*RestoreResult, error) {
	a, err := Read(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for _, ar := range a.Runs {
		_, err := s.GetRun(ctx, ar.Run.ID)
		switch {
		case err == nil && mode == RestoreReplace:
			if err := s.DeleteRun(ctx, ar.Run.ID); err != nil {
				return nil, fmt.Errorf("failed to replace run %s: %w", ar.Run.ID, err)
			}
		case err == nil:
			result.RunsSkipped++
			continue
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to check existing run %s: %w", ar.Run.ID, err)
		}

		if _, err := s.SaveRun(ctx, ar.Run, ar.Spikes); err != nil {
			return nil, fmt.Errorf("failed to restore run %s: %w", ar.Run.ID, err)
		}
		result.RunsRestored++
		result.SpikesRestored += len(ar.Spikes)
	}
	return result, nil
}

// DefaultDir returns the archive directory inside a .lifnet directory.
func DefaultDir(lifnetDir string) string {
	return filepath.Join(lifnetDir, "archives")
}

// GeneratePath creates a timestamped archive filename in dir.
func GeneratePath(dir string) string {
	ts := time.Now().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", filePrefix, ts, fileExt))
}
