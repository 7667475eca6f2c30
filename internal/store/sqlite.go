package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/lifnet/internal/neuron"
	"github.com/nvandessel/lifnet/internal/raster"
)

// timeLayout is fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRunStore implements RunStore using SQLite for persistence.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dir    string
	dbPath string
}

// NewSQLiteRunStore creates a store rooted at projectRoot. It creates
// the database at .lifnet/lifnet.db.
func NewSQLiteRunStore(projectRoot string) (*SQLiteRunStore, error) {
	return OpenDir(LocalPath(projectRoot))
}

// OpenDir opens (creating if needed) the run database inside dir.
func OpenDir(dir string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, DBFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dir: dir, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// SaveRun inserts the run row and every spike in one transaction.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run Run, spikes []raster.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.Spikes = len(spikes)

	params, err := json.Marshal(run.Params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, seed, neurons, connection_prob, edges, duration_ms,
			steps, synapse, params, spikes, elapsed_ns, output, format, label
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(timeLayout), strconv.FormatUint(run.Seed, 10),
		run.Neurons, run.ConnectionProb, run.Edges, run.Duration,
		run.Steps, run.Params.Synapse.String(), string(params),
		run.Spikes, int64(run.Elapsed), nullString(run.Output), nullString(run.Format), nullString(run.Label),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO spikes (run_id, seq, step, neuron, time_ms) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare spike insert: %w", err)
	}
	defer stmt.Close()

	for i, ev := range spikes {
		if _, err := stmt.ExecContext(ctx, run.ID, i, ev.Step, ev.Neuron, ev.Time); err != nil {
			return "", fmt.Errorf("failed to insert spike %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

const runColumns = `id, created_at, seed, neurons, connection_prob, edges, duration_ms,
	steps, params, spikes, elapsed_ns, output, format, label`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r                     Run
		created, seed, params string
		elapsed               int64
		output, format, label sql.NullString
	)
	if err := row.Scan(&r.ID, &created, &seed, &r.Neurons, &r.ConnectionProb, &r.Edges, &r.Duration,
		&r.Steps, &params, &r.Spikes, &elapsed, &output, &format, &label); err != nil {
		return nil, err
	}

	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("run %s: bad created_at: %w", r.ID, err)
	}
	if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("run %s: bad seed: %w", r.ID, err)
	}
	var p neuron.Params
	if err := json.Unmarshal([]byte(params), &p); err != nil {
		return nil, fmt.Errorf("run %s: bad params: %w", r.ID, err)
	}
	p.Update()
	r.Params = p
	r.Elapsed = time.Duration(elapsed)
	r.Output = output.String
	r.Format = format.String
	r.Label = label.String
	return &r, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// LoadSpikes returns the spikes of a run in emission order.
func (s *SQLiteRunStore) LoadSpikes(ctx context.Context, id string) ([]raster.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT step, neuron, time_ms FROM spikes WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query spikes: %w", err)
	}
	defer rows.Close()

	events := make([]raster.Event, 0)
	for rows.Next() {
		var ev raster.Event
		if err := rows.Scan(&ev.Step, &ev.Neuron, &ev.Time); err != nil {
			return nil, fmt.Errorf("failed to scan spike: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate spikes: %w", err)
	}
	return events, nil
}

// DeleteRun removes a run; its spikes cascade.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
