package vigil

import "time"

// CanExtend reports whether an extension request is admissible for the given
// snapshot: the session has not expired and the per-session quota has room.
// Pure; UIs can gate an "extend" affordance on it without mutating anything.
func CanExtend(state State) bool {
	return state.Status != StatusExpired && state.ExtensionsGranted < state.MaxExtensions
}

// RemainingExtensions returns how many extensions the session may still be
// granted. Never negative.
func RemainingExtensions(state State) int {
	if n := state.MaxExtensions - state.ExtensionsGranted; n > 0 {
		return n
	}
	return 0
}

// NextDeadline computes the deadline after an extension of d at the given
// instant. A non-positive d falls back to the configured session duration.
func NextDeadline(now time.Time, d, fallback time.Duration) time.Time {
	if d <= 0 {
		d = fallback
	}
	return now.Add(d)
}

// statusForRemaining maps time-to-deadline onto the steady (non-Extended)
// status it implies.
func statusForRemaining(t, warningTime, finalWarningTime time.Duration) Status {
	switch {
	case t <= 0:
		return StatusExpired
	case t <= finalWarningTime:
		return StatusFinalWarning
	case t <= warningTime:
		return StatusWarning
	default:
		return StatusActive
	}
}
