package vigil

import "time"

// Metrics is a snapshot of cumulative usage statistics. It spans every
// session an engine instance has observed; ResetSession never clears it.
type Metrics struct {
	// TotalSessionTime is the summed duration of ended sessions.
	TotalSessionTime time.Duration `json:"total_session_time"`

	// ActiveTime and IdleTime apportion the engine's lifetime by whether
	// each tick interval contained at least one activity signal.
	ActiveTime time.Duration `json:"active_time"`
	IdleTime   time.Duration `json:"idle_time"`

	// TimeoutCount is how many sessions ended in expiry.
	TimeoutCount int `json:"timeout_count"`

	// ExtensionCount is how many extensions were granted, across sessions.
	ExtensionCount int `json:"extension_count"`

	// EndedSessions counts sessions that ended, by expiry or graceful reset.
	EndedSessions int `json:"ended_sessions"`

	// AverageSessionLength is the running mean duration of ended sessions.
	AverageSessionLength time.Duration `json:"average_session_length"`

	// AbandonmentRate is the fraction of ended sessions that expired
	// rather than being reset while the user was still around.
	AbandonmentRate float64 `json:"abandonment_rate"`
}

// aggregator accumulates Metrics for the life of one engine. Callers hold
// the engine mutex; the aggregator itself does no locking.
type aggregator struct {
	enabled    bool
	m          Metrics
	resetCount int
}

func newAggregator(enabled bool) *aggregator {
	return &aggregator{enabled: enabled}
}

// tick attributes one tick interval to active or idle time.
func (a *aggregator) tick(interval time.Duration, sawActivity bool) {
	if !a.enabled || interval <= 0 {
		return
	}
	if sawActivity {
		a.m.ActiveTime += interval
	} else {
		a.m.IdleTime += interval
	}
}

// extension records one granted extension.
func (a *aggregator) extension() {
	if !a.enabled {
		return
	}
	a.m.ExtensionCount++
}

// sessionEnded records a session that ran for dur and ended either by
// expiry or by a graceful reset.
func (a *aggregator) sessionEnded(dur time.Duration, expired bool) {
	if !a.enabled {
		return
	}
	a.m.TotalSessionTime += dur
	a.m.EndedSessions++
	if expired {
		a.m.TimeoutCount++
	} else {
		a.resetCount++
	}
	a.m.AverageSessionLength = a.m.TotalSessionTime / time.Duration(a.m.EndedSessions)
	if ended := a.m.TimeoutCount + a.resetCount; ended > 0 {
		a.m.AbandonmentRate = float64(a.m.TimeoutCount) / float64(ended)
	}
}

func (a *aggregator) snapshot() Metrics {
	return a.m
}
