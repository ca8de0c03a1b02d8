package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements RecordStore using SQLite.
// It uses the pure Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite record store.
// The database file is created if it doesn't exist.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_records (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		tab_id      TEXT NOT NULL,
		started_at  DATETIME NOT NULL,
		ended_at    DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome     TEXT NOT NULL,
		warnings    INTEGER NOT NULL,
		extensions  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_ended
		ON session_records (ended_at);
	CREATE INDEX IF NOT EXISTS idx_records_outcome
		ON session_records (outcome);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: failed to create schema: %w", err)
	}
	return nil
}

// Save appends one ended-session record.
func (s *SQLiteStore) Save(rec *Record) error {
	query := `
	INSERT INTO session_records (
		tab_id, started_at, ended_at, duration_ms, outcome, warnings, extensions
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		rec.TabID,
		rec.StartedAt,
		rec.EndedAt,
		rec.Duration.Milliseconds(),
		string(rec.Outcome),
		rec.Warnings,
		rec.Extensions,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest EndedAt first.
// A non-positive limit returns everything.
func (s *SQLiteStore) Recent(limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: LIMIT -1 means unbounded
	}
	query := `
	SELECT tab_id, started_at, ended_at, duration_ms, outcome, warnings, extensions
	FROM session_records
	ORDER BY ended_at DESC
	LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating records: %w", err)
	}

	return records, nil
}

// CountByOutcome returns how many stored records ended with outcome.
func (s *SQLiteStore) CountByOutcome(outcome Outcome) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM session_records WHERE outcome = ?",
		string(outcome),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count records: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanRecord scans a record from sql.Rows.
func scanRecord(rows *sql.Rows) (*Record, error) {
	var rec Record
	var durationMS int64
	var outcome string
	err := rows.Scan(
		&rec.TabID,
		&rec.StartedAt,
		&rec.EndedAt,
		&durationMS,
		&outcome,
		&rec.Warnings,
		&rec.Extensions,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan record: %w", err)
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.Outcome = Outcome(outcome)
	return &rec, nil
}
