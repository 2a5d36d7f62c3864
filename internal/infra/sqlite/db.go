// Package sqlite provides the local work journal for the HashPlane agent.
// Uses WAL mode for crash-safe writes.
//
// The journal is a history for operator inspection only — submitted shares
// and finished jobs. It is never read back into the worker loops and never
// treated as an authoritative total; the coordinator owns all accounting.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// ShareRecord is one submitted share.
type ShareRecord struct {
	SubmittedAt time.Time `json:"submitted_at"`
	Difficulty  float64   `json:"difficulty"`
	Nonce       uint64    `json:"nonce"`
	Hash        string    `json:"hash"`
	ElapsedMS   int64     `json:"elapsed_ms"`
}

// JobRecord is one finished inference job.
type JobRecord struct {
	ID         string    `json:"id"`
	ModelID    string    `json:"model_id"`
	Status     string    `json:"status"` // "completed" or "failed"
	Error      string    `json:"error,omitempty"`
	ElapsedMS  int64     `json:"elapsed_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the journal at dir/journal.db.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "journal.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS shares (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			submitted_at INTEGER NOT NULL,
			difficulty   REAL NOT NULL,
			nonce        INTEGER NOT NULL,
			hash         TEXT NOT NULL,
			elapsed_ms   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shares_submitted ON shares(submitted_at)`,

		`CREATE TABLE IF NOT EXISTS jobs (
			id          TEXT PRIMARY KEY,
			model_id    TEXT NOT NULL,
			status      TEXT NOT NULL,
			error       TEXT NOT NULL DEFAULT '',
			elapsed_ms  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_finished ON jobs(finished_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// ─── Shares ─────────────────────────────────────────────────────────────────

// RecordShare appends one submitted share to the journal.
func (d *DB) RecordShare(s ShareRecord) error {
	_, err := d.db.Exec(
		`INSERT INTO shares (submitted_at, difficulty, nonce, hash, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		s.SubmittedAt.Unix(), s.Difficulty, int64(s.Nonce), s.Hash, s.ElapsedMS,
	)
	if err != nil {
		return fmt.Errorf("record share: %w", err)
	}
	return nil
}

// RecentShares returns the newest shares, most recent first.
func (d *DB) RecentShares(limit int) ([]ShareRecord, error) {
	rows, err := d.db.Query(
		`SELECT submitted_at, difficulty, nonce, hash, elapsed_ms
		 FROM shares ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query shares: %w", err)
	}
	defer rows.Close()

	var out []ShareRecord
	for rows.Next() {
		var s ShareRecord
		var ts, nonce int64
		if err := rows.Scan(&ts, &s.Difficulty, &nonce, &s.Hash, &s.ElapsedMS); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		s.SubmittedAt = time.Unix(ts, 0)
		s.Nonce = uint64(nonce)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ShareCount returns how many shares this agent has journaled locally.
// Informational only — the coordinator's total is authoritative.
func (d *DB) ShareCount() (int64, error) {
	var n int64
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM shares`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count shares: %w", err)
	}
	return n, nil
}

// ─── Jobs ───────────────────────────────────────────────────────────────────

// RecordJob upserts one finished job. Upsert keeps the journal idempotent if
// the coordinator ever re-issues an already-finished job ID.
func (d *DB) RecordJob(j JobRecord) error {
	_, err := d.db.Exec(
		`INSERT INTO jobs (id, model_id, status, error, elapsed_ms, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			model_id = excluded.model_id,
			status = excluded.status,
			error = excluded.error,
			elapsed_ms = excluded.elapsed_ms,
			finished_at = excluded.finished_at`,
		j.ID, j.ModelID, j.Status, j.Error, j.ElapsedMS, j.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

// RecentJobs returns the newest finished jobs, most recent first.
func (d *DB) RecentJobs(limit int) ([]JobRecord, error) {
	rows, err := d.db.Query(
		`SELECT id, model_id, status, error, elapsed_ms, finished_at
		 FROM jobs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var j JobRecord
		var ts int64
		if err := rows.Scan(&j.ID, &j.ModelID, &j.Status, &j.Error, &j.ElapsedMS, &ts); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.FinishedAt = time.Unix(ts, 0)
		out = append(out, j)
	}
	return out, rows.Err()
}
