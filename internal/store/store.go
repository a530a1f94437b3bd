// Package store persists a local audit trail of triage runs in SQLite.
// The backend record store owns the reports themselves; this is the
// service's own history for inspection and debugging.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"urbanflow/internal/logging"
	"urbanflow/internal/report"
)

// RunStore records completed triage runs.
type RunStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// RunRecord is one audited pipeline run.
type RunRecord struct {
	RunID     string
	UserID    string
	Category  report.Category
	Severity  report.Severity
	Title     string
	Status    report.OutcomeStatus
	Action    report.Action
	ReportID  string
	Geohash   string
	ElapsedMS int64
	CreatedAt time.Time
}

// New opens (or creates) the run store at the given database path. The
// parent directory is created if it doesn't exist.
func New(dbPath string) (*RunStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &RunStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *RunStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		action TEXT NOT NULL,
		report_id TEXT,
		geohash TEXT NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_user_id ON runs(user_id);
	CREATE INDEX IF NOT EXISTS idx_runs_category ON runs(category);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores the outcome of one pipeline run.
func (s *RunStore) RecordRun(sub report.Submission, outcome report.Outcome) error {
	defer logging.StartTimer(logging.CategoryStore, "record run").Stop()
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO runs (run_id, user_id, category, severity, title, status, action, report_id, geohash, elapsed_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		outcome.RunID,
		sub.UserID,
		string(outcome.Category),
		string(outcome.Severity),
		outcome.Title,
		string(outcome.Status),
		string(outcome.Action),
		outcome.ReportID,
		sub.Fingerprint.Geohash,
		outcome.Elapsed.Milliseconds(),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	logging.Store("recorded run %s status=%s category=%s", outcome.RunID, outcome.Status, outcome.Category)
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *RunStore) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT run_id, user_id, category, severity, title, status, action, report_id, geohash, elapsed_ms, created_at
	FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var category, severity, status, action, createdAt string
		var reportID sql.NullString
		if err := rows.Scan(&r.RunID, &r.UserID, &category, &severity, &r.Title, &status, &action, &reportID, &r.Geohash, &r.ElapsedMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Category = report.Category(category)
		r.Severity = report.Severity(severity)
		r.Status = report.OutcomeStatus(status)
		r.Action = report.Action(action)
		r.ReportID = reportID.String
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			r.CreatedAt = t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}
