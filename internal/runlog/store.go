// Package runlog persists run and job outcomes to a SQLite ledger in
// the working directory. The ledger is a record of what happened, not a
// queue: scheduling state lives in memory only, so an interrupted run
// resumes from the artifacts on disk rather than from the database.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    started_at  TEXT NOT NULL,
    finished_at TEXT,
    entry_stage TEXT NOT NULL,
    exit_stage  TEXT NOT NULL,
    two_way     INTEGER NOT NULL,
    n_species   INTEGER NOT NULL,
    outcome     TEXT
);
CREATE TABLE IF NOT EXISTS jobs (
    run_id      TEXT NOT NULL REFERENCES runs(id),
    query_id    INTEGER NOT NULL,
    target_id   INTEGER NOT NULL,
    cost        INTEGER NOT NULL,
    exit_code   INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    detail      TEXT,
    PRIMARY KEY (run_id, query_id, target_id)
);
`

// Store is the run ledger backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the ledger database inside the working directory,
// creating it and its schema on first use.
func Open(workingDir string) (*Store, error) {
	dbPath := filepath.Join(workingDir, "runlog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the ledger file path.
func (s *Store) Path() string { return s.path }

// StartRun records the beginning of a run.
func (s *Store) StartRun(ctx context.Context, runID, entryStage, exitStage string, twoWay bool, nSpecies int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, entry_stage, exit_stage, two_way, n_species)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339Nano),
		entryStage, exitStage, boolToInt(twoWay), nSpecies)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordJob records the outcome of one search job.
func (s *Store) RecordJob(ctx context.Context, runID string, query, target int, cost int64, exitCode int, duration time.Duration, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (run_id, query_id, target_id, cost, exit_code, duration_ms, detail)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, query, target, cost, exitCode, duration.Milliseconds(), nullableString(detail))
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// FinishRun records how the run ended.
func (s *Store) FinishRun(ctx context.Context, runID, outcome string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), outcome, runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// JobFailure is one failed job read back from the ledger.
type JobFailure struct {
	Query    int
	Target   int
	ExitCode int
	Detail   string
}

// FailedJobs lists the jobs of a run that exited non-zero.
func (s *Store) FailedJobs(ctx context.Context, runID string) ([]JobFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT query_id, target_id, exit_code, COALESCE(detail, '')
         FROM jobs WHERE run_id = ? AND exit_code != 0
         ORDER BY query_id, target_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed jobs: %w", err)
	}
	defer rows.Close()

	var failures []JobFailure
	for rows.Next() {
		var f JobFailure
		if err := rows.Scan(&f.Query, &f.Target, &f.ExitCode, &f.Detail); err != nil {
			return nil, fmt.Errorf("scan failed job: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
