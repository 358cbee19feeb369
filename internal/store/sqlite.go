// Package store persists snapshot run history in a local SQLite database.
// The history is diagnostics-grade: callers treat a broken store as a
// logging problem, never as a reason to stop showing content.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SnapshotRun is one row of snapshot history.
type SnapshotRun struct {
	ID          int64  `json:"id"`
	StartedAt   int64  `json:"started_at"`
	FinishedAt  int64  `json:"finished_at"`
	Changed     bool   `json:"changed"`
	Assets      int    `json:"assets"`
	Failed      int    `json:"failed,omitempty"`
	Bytes       int64  `json:"bytes"`
	IndexSHA256 string `json:"index_sha256"`
	Error       string `json:"error,omitempty"`
}

// Store provides database operations.
type Store struct {
	db     *sql.DB
	dbPath string
}

// New opens (or creates) the SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// DBPath returns the database file path.
func (s *Store) DBPath() string { return s.dbPath }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a snapshot run and returns its ID.
func (s *Store) RecordRun(r *SnapshotRun) (int64, error) {
	changed := 0
	if r.Changed {
		changed = 1
	}
	res, err := s.db.Exec(`
		INSERT INTO snapshot_runs (started_at, finished_at, changed, assets, failed, bytes, index_sha256, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt, r.FinishedAt, changed, r.Assets, r.Failed, r.Bytes, r.IndexSHA256, r.Error)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestRun returns the most recent run, or nil when the history is empty.
func (s *Store) LatestRun() (*SnapshotRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, changed, assets, failed, bytes, index_sha256, error
		FROM snapshot_runs ORDER BY started_at DESC, id DESC LIMIT 1`)
	r, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]SnapshotRun, error) {
	if limit < 1 {
		limit = 1
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, changed, assets, failed, bytes, index_sha256, error
		FROM snapshot_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SnapshotRun
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// PurgeRunsOlderThan removes runs that started more than the given number
// of days ago and returns how many were deleted.
func (s *Store) PurgeRunsOlderThan(days int) (int64, error) {
	cutoff := time.Now().Unix() - int64(days)*86400
	res, err := s.db.Exec("DELETE FROM snapshot_runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRun(scan func(...any) error) (*SnapshotRun, error) {
	var r SnapshotRun
	var changed int
	if err := scan(&r.ID, &r.StartedAt, &r.FinishedAt, &changed, &r.Assets, &r.Failed, &r.Bytes, &r.IndexSHA256, &r.Error); err != nil {
		return nil, err
	}
	r.Changed = changed != 0
	return &r, nil
}
