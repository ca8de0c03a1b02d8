package vigil

import "time"

// Status is the lifecycle phase of the current session.
type Status string

const (
	// StatusActive means the deadline is comfortably in the future.
	StatusActive Status = "active"

	// StatusWarning means the session will expire within WarningTime.
	StatusWarning Status = "warning"

	// StatusFinalWarning means the session will expire within FinalWarningTime.
	StatusFinalWarning Status = "final_warning"

	// StatusExpired means the deadline passed. Terminal until ResetSession.
	StatusExpired Status = "expired"

	// StatusExtended is entered immediately after a granted extension and
	// settles back into a steady status on the next tick.
	StatusExtended Status = "extended"
)

// State is a snapshot of the session lifecycle. The engine hands out copies;
// mutating a snapshot has no effect on the engine.
type State struct {
	Status       Status    `json:"status"`
	Deadline     time.Time `json:"deadline"`
	SessionStart time.Time `json:"session_start"`
	LastActivity time.Time `json:"last_activity"`

	// WarningsShown and ExtensionsGranted only grow within a session and
	// reset to zero on ResetSession.
	WarningsShown     int `json:"warnings_shown"`
	ExtensionsGranted int `json:"extensions_granted"`

	// MaxExtensions is copied from the config at session start, so a later
	// config change never retroactively invalidates granted extensions.
	MaxExtensions int `json:"max_extensions"`
}

// Remaining returns the time left until the deadline at the given instant.
// Negative once the deadline has passed.
func (s State) Remaining(now time.Time) time.Duration {
	return s.Deadline.Sub(now)
}

// Announce is the payload broadcast to sibling tabs on every locally caused
// transition. Each tab owns its local State; an Announce is only an offer
// that the receiver merges by the rules in merge().
type Announce struct {
	TabID             string    `json:"tab_id"`
	Status            Status    `json:"status"`
	Deadline          time.Time `json:"deadline"`
	SessionStart      time.Time `json:"session_start"`
	ExtensionsGranted int       `json:"extensions_granted"`
	OriginTimestamp   time.Time `json:"origin_timestamp"`
}
