package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements RecordStore using MySQL.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQL creates a new MySQL record store on an existing connection.
func NewMySQL(db *sql.DB) (*MySQLStore, error) {
	if err := createMySQLSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &MySQLStore{db: db}, nil
}

// NewMySQLFromDSN creates a new MySQL record store from a DSN.
// The DSN format is: user:password@tcp(host:port)/database
func NewMySQLFromDSN(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn+"?parseTime=true")
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: failed to connect: %w", err)
	}

	return NewMySQL(db)
}

func createMySQLSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_records (
		id          BIGINT PRIMARY KEY AUTO_INCREMENT,
		tab_id      VARCHAR(64) NOT NULL,
		started_at  TIMESTAMP NOT NULL,
		ended_at    TIMESTAMP NOT NULL,
		duration_ms BIGINT NOT NULL,
		outcome     VARCHAR(20) NOT NULL,
		warnings    INT NOT NULL,
		extensions  INT NOT NULL,

		INDEX idx_records_ended (ended_at),
		INDEX idx_records_outcome (outcome)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("mysql: failed to create schema: %w", err)
	}
	return nil
}

// Save appends one ended-session record.
func (s *MySQLStore) Save(rec *Record) error {
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
		return fmt.Errorf("mysql: failed to save record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest EndedAt first.
// A non-positive limit returns everything.
func (s *MySQLStore) Recent(limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	query := `
	SELECT tab_id, started_at, ended_at, duration_ms, outcome, warnings, extensions
	FROM session_records
	ORDER BY ended_at DESC
	LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanMySQLRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: error iterating records: %w", err)
	}

	return records, nil
}

// CountByOutcome returns how many stored records ended with outcome.
func (s *MySQLStore) CountByOutcome(outcome Outcome) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM session_records WHERE outcome = ?",
		string(outcome),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("mysql: failed to count records: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func scanMySQLRecord(rows *sql.Rows) (*Record, error) {
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
		return nil, fmt.Errorf("mysql: failed to scan record: %w", err)
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.Outcome = Outcome(outcome)
	return &rec, nil
}
