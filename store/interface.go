// Package store persists ended-session records for local usage analytics.
// Backends share one interface so hosts can swap in-memory, SQLite, MySQL,
// or Redis retention without touching the engine.
package store

import "time"

// Outcome classifies how a session ended.
type Outcome string

const (
	// OutcomeExpired means the session timed out with no user response.
	OutcomeExpired Outcome = "expired"

	// OutcomeReset means the session ended gracefully: an explicit reset
	// or a fresh epoch started elsewhere while the user was present.
	OutcomeReset Outcome = "reset"
)

// Record describes one ended session.
type Record struct {
	TabID      string        `json:"tab_id"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
	Duration   time.Duration `json:"duration"`
	Outcome    Outcome       `json:"outcome"`
	Warnings   int           `json:"warnings"`
	Extensions int           `json:"extensions"`
}

// RecordStore defines the interface for session-record backends.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// Save appends one ended-session record.
	Save(rec *Record) error

	// Recent returns up to limit records, newest EndedAt first.
	Recent(limit int) ([]*Record, error)

	// CountByOutcome returns how many stored records ended with the
	// given outcome.
	CountByOutcome(outcome Outcome) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
