package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/lifnet/internal/neuron"
	"github.com/nvandessel/lifnet/internal/raster"
)

func sampleRun(created time.Time) Run {
	var p neuron.Params
	p.Defaults()
	return Run{
		CreatedAt:      created,
		Seed:           1<<63 + 5, // above int64 range
		Neurons:        100,
		ConnectionProb: 0.1,
		Edges:          990,
		Duration:       1000,
		Steps:          10000,
		Params:         p,
		Elapsed:        1500 * time.Millisecond,
		Output:         "spikes.csv",
		Format:         "csv",
	}
}

func sampleSpikes() []raster.Event {
	return []raster.Event{
		{Step: 0, Neuron: 3, Time: 0},
		{Step: 0, Neuron: 7, Time: 0},
		{Step: 12, Neuron: 1, Time: 1.2},
	}
}

// storeFactories lets every behavioral test run against both implementations.
func storeFactories(t *testing.T) map[string]func() RunStore {
	return map[string]func() RunStore{
		"sqlite": func() RunStore {
			s, err := NewSQLiteRunStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewSQLiteRunStore() error = %v", err)
			}
			return s
		},
		"memory": func() RunStore { return NewInMemoryRunStore() },
	}
}

func TestNewSQLiteRunStore_CreatesDatabase(t *testing.T) {
	root := t.TempDir()
	s, err := NewSQLiteRunStore(root)
	if err != nil {
		t.Fatalf("NewSQLiteRunStore() error = %v", err)
	}
	defer s.Close()

	dbPath := filepath.Join(root, ".lifnet", "lifnet.db")
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("lifnet.db was not created: %v", err)
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %s, want %s", s.Path(), dbPath)
	}
}

func TestRunStore_SaveAndGet(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()
			ctx := context.Background()

			created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			id, err := s.SaveRun(ctx, sampleRun(created), sampleSpikes())
			if err != nil {
				t.Fatalf("SaveRun() error = %v", err)
			}
			if id == "" {
				t.Fatal("SaveRun() returned empty id")
			}

			got, err := s.GetRun(ctx, id)
			if err != nil {
				t.Fatalf("GetRun() error = %v", err)
			}
			if got.Seed != 1<<63+5 {
				t.Errorf("Seed = %d, want %d", got.Seed, uint64(1<<63+5))
			}
			if got.Spikes != 3 {
				t.Errorf("Spikes = %d, want 3", got.Spikes)
			}
			if !got.CreatedAt.Equal(created) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
			}
			if got.Params.RefractorySteps != 20 {
				t.Errorf("Params.RefractorySteps = %d, want 20", got.Params.RefractorySteps)
			}
			if got.Params.Synapse != neuron.ConductanceBased {
				t.Errorf("Params.Synapse = %v, want conductance", got.Params.Synapse)
			}
			if got.Elapsed != 1500*time.Millisecond {
				t.Errorf("Elapsed = %v, want 1.5s", got.Elapsed)
			}
			if got.Output != "spikes.csv" || got.Label != "" {
				t.Errorf("Output/Label = %q/%q", got.Output, got.Label)
			}
		})
	}
}

func TestRunStore_LoadSpikesPreservesOrder(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()
			ctx := context.Background()

			want := sampleSpikes()
			id, err := s.SaveRun(ctx, sampleRun(time.Now()), want)
			if err != nil {
				t.Fatalf("SaveRun() error = %v", err)
			}

			got, err := s.LoadSpikes(ctx, id)
			if err != nil {
				t.Fatalf("LoadSpikes() error = %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("LoadSpikes() returned %d spikes, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("spike %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()
			ctx := context.Background()

			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			var ids []string
			for i := 0; i < 3; i++ {
				id, err := s.SaveRun(ctx, sampleRun(base.Add(time.Duration(i)*time.Hour)), nil)
				if err != nil {
					t.Fatalf("SaveRun() error = %v", err)
				}
				ids = append(ids, id)
			}

			runs, err := s.ListRuns(ctx, 0)
			if err != nil {
				t.Fatalf("ListRuns() error = %v", err)
			}
			if len(runs) != 3 {
				t.Fatalf("ListRuns() returned %d runs, want 3", len(runs))
			}
			if runs[0].ID != ids[2] || runs[2].ID != ids[0] {
				t.Errorf("ListRuns() order = %s,%s,%s", runs[0].ID, runs[1].ID, runs[2].ID)
			}

			limited, err := s.ListRuns(ctx, 2)
			if err != nil {
				t.Fatalf("ListRuns(2) error = %v", err)
			}
			if len(limited) != 2 {
				t.Errorf("ListRuns(2) returned %d runs", len(limited))
			}
		})
	}
}

func TestRunStore_DeleteRun(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()
			ctx := context.Background()

			id, err := s.SaveRun(ctx, sampleRun(time.Now()), sampleSpikes())
			if err != nil {
				t.Fatalf("SaveRun() error = %v", err)
			}
			if err := s.DeleteRun(ctx, id); err != nil {
				t.Fatalf("DeleteRun() error = %v", err)
			}

			if _, err := s.GetRun(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetRun() after delete error = %v, want ErrNotFound", err)
			}
			if _, err := s.LoadSpikes(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Errorf("LoadSpikes() after delete error = %v, want ErrNotFound", err)
			}
			if err := s.DeleteRun(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Errorf("second DeleteRun() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestRunStore_DuplicateIDFails(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()
			ctx := context.Background()

			run := sampleRun(time.Now())
			run.ID = NewRunID()
			if _, err := s.SaveRun(ctx, run, nil); err != nil {
				t.Fatalf("SaveRun() error = %v", err)
			}
			if _, err := s.SaveRun(ctx, run, sampleSpikes()); err == nil {
				t.Error("expected error saving duplicate run ID")
			}
		})
	}
}

func TestSQLiteRunStore_Reopen(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteRunStore(root)
	if err != nil {
		t.Fatalf("NewSQLiteRunStore() error = %v", err)
	}
	id, err := s.SaveRun(ctx, sampleRun(time.Now()), sampleSpikes())
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	s.Close()

	s2, err := NewSQLiteRunStore(root)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()

	if _, err := s2.GetRun(ctx, id); err != nil {
		t.Errorf("GetRun() after reopen error = %v", err)
	}
}

func TestResolveID(t *testing.T) {
	s := NewInMemoryRunStore()
	ctx := context.Background()

	a := sampleRun(time.Now())
	a.ID = "aaaa1111-0000-4000-8000-000000000000"
	b := sampleRun(time.Now())
	b.ID = "aaaa2222-0000-4000-8000-000000000000"
	for _, r := range []Run{a, b} {
		if _, err := s.SaveRun(ctx, r, nil); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		prefix  string
		want    string
		wantErr bool
	}{
		{"aaaa1", a.ID, false},
		{"aaaa2222", b.ID, false},
		{a.ID, a.ID, false},
		{"aaaa", "", true},
		{"zz", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveID(ctx, s, tt.prefix)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveID(%q) error = %v, wantErr %v", tt.prefix, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveID(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestPathFor(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	local, err := PathFor("local", "/proj")
	if err != nil || local != filepath.Join("/proj", ".lifnet") {
		t.Errorf("PathFor(local) = %q, %v", local, err)
	}
	global, err := PathFor("global", "/proj")
	if err != nil || global != filepath.Join(home, ".lifnet") {
		t.Errorf("PathFor(global) = %q, %v", global, err)
	}
	if _, err := PathFor("team", "/proj"); err == nil {
		t.Error("expected error for invalid scope")
	}
}

func TestResetSchema(t *testing.T) {
	s, err := NewSQLiteRunStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	if _, err := s.SaveRun(ctx, sampleRun(time.Now()), sampleSpikes()); err != nil {
		t.Fatal(err)
	}
	if err := ResetSchema(ctx, s.db); err != nil {
		t.Fatalf("ResetSchema() error = %v", err)
	}
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("expected empty store after reset, got %d runs", len(runs))
	}
	if err := ValidateIntegrity(ctx, s.db); err != nil {
		t.Errorf("ValidateIntegrity() error = %v", err)
	}
}
