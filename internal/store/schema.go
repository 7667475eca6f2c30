package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the version created by a fresh database.
const SchemaVersion = 1

// schemaV1 holds run metadata and the spike log of every stored run.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    seed TEXT NOT NULL,  -- uint64 as decimal text, SQLite integers are signed

    neurons INTEGER NOT NULL,
    connection_prob REAL NOT NULL,
    edges INTEGER NOT NULL,
    duration_ms REAL NOT NULL,
    steps INTEGER NOT NULL,
    synapse TEXT NOT NULL,
    params TEXT NOT NULL,  -- JSON

    spikes INTEGER NOT NULL DEFAULT 0,
    elapsed_ns INTEGER NOT NULL DEFAULT 0,
    output TEXT,
    format TEXT,
    label TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

-- One row per spike, seq preserves emission order
CREATE TABLE IF NOT EXISTS spikes (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    step INTEGER NOT NULL,
    neuron INTEGER NOT NULL,
    time_ms REAL NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_spikes_neuron ON spikes(run_id, neuron);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// migration upgrades a database from version From to From+1.
type migration struct {
	From int
	SQL  string
}

// migrations is ordered by From. Version 1 is the first released schema, so
// the list is empty until the runs table changes.
var migrations []migration

// InitSchema prepares db for use. A new database gets the full schema; an
// existing one is integrity-checked and then brought up to SchemaVersion.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, err := schemaVersion(ctx, db)
	if err != nil {
		// No schema_version table: a fresh database.
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}
	if version < SchemaVersion {
		if err := migrate(ctx, db, version); err != nil {
			return fmt.Errorf("failed to migrate schema from version %d: %w", version, err)
		}
	}
	return nil
}

// schemaVersion reads the highest applied version. It fails when the
// schema_version table is missing.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := recordVersion(ctx, tx, SchemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}

// migrate applies every migration after version in one transaction.
func migrate(ctx context.Context, db *sql.DB, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range migrations {
		if m.From < version {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %d->%d: %w", m.From, m.From+1, err)
		}
		if err := recordVersion(ctx, tx, m.From+1); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func recordVersion(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		version); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// ValidateIntegrity fails if SQLite's integrity_check or foreign_key_check
// reports a problem.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read integrity_check result: %w", err)
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var fkErrors []string
	for fkRows.Next() {
		var table, rowid, parent, fkid sql.NullString
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table.String, rowid.String, parent.String, fkid.String))
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}

	return nil
}

// ResetSchema drops every table and recreates them empty. Tests use it to
// reuse a database between cases.
func ResetSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"spikes", "runs", "schema_version"} {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return InitSchema(ctx, db)
}
