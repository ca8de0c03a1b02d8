package vigil

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/thural/vigil/store"
)

// emissionKind tags a pending callback produced while the engine lock was
// held. Handlers run after unlock so a consumer calling back into the
// engine cannot deadlock it.
type emissionKind int

const (
	emitStateChange emissionKind = iota
	emitWarning
	emitFinalWarning
	emitTimeout
	emitExtended
	emitActivity

	// emitRecord carries only a session record to persist; no callback
	// fires for it.
	emitRecord
)

type emission struct {
	kind      emissionKind
	state     State
	remaining time.Duration
	deadline  time.Time
	activity  ActivityKind
	record    *store.Record
}

// advance evaluates the state machine against the current instant and
// applies due transitions. The checks run in threshold order without
// early exit, so a tick that jumps past several thresholds at once (a
// suspended laptop waking up) still walks Active → Warning → FinalWarning
// → Expired, emitting each exactly once. Caller holds the lock.
func (e *Engine) advance(now time.Time) []emission {
	var evs []emission
	t := e.state.Remaining(now)

	// A granted extension settles on the next tick; from here the new
	// deadline decides how far the cascade below runs.
	if e.state.Status == StatusExtended {
		e.state.Status = StatusActive
		evs = append(evs, emission{kind: emitStateChange, state: e.state})
	}

	if e.state.Status == StatusActive && t <= e.cfg.WarningTime {
		e.state.Status = StatusWarning
		e.state.WarningsShown++
		evs = append(evs, emission{kind: emitWarning, state: e.state, remaining: t})
	}
	if e.state.Status == StatusWarning && t <= e.cfg.FinalWarningTime {
		e.state.Status = StatusFinalWarning
		evs = append(evs, emission{kind: emitFinalWarning, state: e.state, remaining: t})
	}
	if e.state.Status == StatusFinalWarning && t <= 0 {
		rec := e.endSessionLocked(now, store.OutcomeExpired)
		e.state.Status = StatusExpired
		evs = append(evs, emission{kind: emitTimeout, state: e.state, record: rec})
	}
	return evs
}

// merge reconciles an inbound announcement against local state. Within one
// session epoch the merge is monotone: deadline and extension count only
// move forward and Expired is sticky, so applying any set of announcements
// in any order converges to the same state. A newer epoch (larger
// SessionStart, i.e. a sibling reset) replaces local state outright; a
// stale epoch is ignored. Caller holds the lock.
func (e *Engine) merge(ann Announce, now time.Time) []emission {
	switch {
	case ann.SessionStart.After(e.state.SessionStart):
		return e.adoptEpoch(ann, now)
	case ann.SessionStart.Before(e.state.SessionStart):
		return nil
	case e.state.Status == StatusExpired:
		// Terminal until a reset, which arrives as a newer epoch.
		return nil
	case ann.Status == StatusExpired:
		// Fail closed: any tab observing expiry logs everyone out.
		rec := e.endSessionLocked(now, store.OutcomeExpired)
		e.state.Status = StatusExpired
		return []emission{{kind: emitTimeout, state: e.state, record: rec}}
	default:
		changed := false
		var evs []emission
		if ann.ExtensionsGranted > e.state.ExtensionsGranted {
			e.state.ExtensionsGranted = ann.ExtensionsGranted
			changed = true
		}
		if ann.Deadline.After(e.state.Deadline) {
			e.state.Deadline = ann.Deadline
			// A sibling pushed the deadline out; settle onto the status
			// the new remaining time implies. Expiry itself is left to
			// the tick so it cannot fire from a stale announcement.
			t := e.state.Remaining(now)
			ns := statusForRemaining(t, e.cfg.WarningTime, e.cfg.FinalWarningTime)
			if ns != StatusExpired && ns != e.state.Status {
				evs = e.shiftStatus(ns, t)
			}
			changed = true
		}
		if !changed {
			return nil
		}
		if len(evs) == 0 {
			evs = []emission{{kind: emitStateChange, state: e.state}}
		}
		return evs
	}
}

// shiftStatus moves the session onto the status a merged deadline implies.
// Escalating walks the warning stages in order with their callbacks and
// counters, the same as a tick crossing the thresholds would; dropping back
// toward Active is a plain state change. Caller holds the lock.
func (e *Engine) shiftStatus(ns Status, t time.Duration) []emission {
	var evs []emission
	if old := e.state.Status; old == StatusActive || old == StatusExtended {
		if ns == StatusWarning || ns == StatusFinalWarning {
			e.state.Status = StatusWarning
			e.state.WarningsShown++
			evs = append(evs, emission{kind: emitWarning, state: e.state, remaining: t})
		}
	}
	if ns == StatusFinalWarning && e.state.Status == StatusWarning {
		e.state.Status = StatusFinalWarning
		evs = append(evs, emission{kind: emitFinalWarning, state: e.state, remaining: t})
	}
	if len(evs) > 0 {
		return evs
	}
	e.state.Status = ns
	return []emission{{kind: emitStateChange, state: e.state}}
}

// adoptEpoch replaces local state with a sibling's newer session epoch.
// The local session, if still running, is closed out as a graceful end:
// the user was demonstrably present in some tab.
func (e *Engine) adoptEpoch(ann Announce, now time.Time) []emission {
	var evs []emission
	if e.state.Status != StatusExpired {
		if rec := e.endSessionLocked(now, store.OutcomeReset); rec != nil {
			evs = append(evs, emission{kind: emitRecord, record: rec})
		}
	}
	e.state = State{
		Status:            ann.Status,
		Deadline:          ann.Deadline,
		SessionStart:      ann.SessionStart,
		LastActivity:      ann.SessionStart,
		ExtensionsGranted: ann.ExtensionsGranted,
		MaxExtensions:     e.state.MaxExtensions,
	}
	ev := emission{kind: emitStateChange, state: e.state}
	if ann.Status == StatusExpired {
		// The adopted session arrived already over; its expiry counts and
		// is recorded here like a locally observed one.
		ev.kind = emitTimeout
		ev.record = e.endSessionLocked(now, store.OutcomeExpired)
	}
	return append(evs, ev)
}

// reconcile is the bus subscription callback. Malformed payloads are
// dropped and logged; they never reach the state machine.
func (e *Engine) reconcile(payload []byte) {
	var ann Announce
	if err := json.Unmarshal(payload, &ann); err != nil {
		e.log.Warn("sync.payload.invalid", slog.String("err", err.Error()))
		return
	}
	if ann.TabID == "" || ann.TabID == e.tabID {
		return
	}
	now := e.clock.Now()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	evs := e.merge(ann, now)
	e.mu.Unlock()

	e.dispatch(evs)
}

// endSessionLocked folds the finished session into the metrics and, when a
// record store is configured, prepares the record to persist. Caller holds
// the lock; the returned record is saved by dispatch after unlock.
func (e *Engine) endSessionLocked(now time.Time, outcome store.Outcome) *store.Record {
	dur := now.Sub(e.state.SessionStart)
	e.agg.sessionEnded(dur, outcome == store.OutcomeExpired)
	if e.recStore == nil {
		return nil
	}
	return &store.Record{
		TabID:      e.tabID,
		StartedAt:  e.state.SessionStart,
		EndedAt:    now,
		Duration:   dur,
		Outcome:    outcome,
		Warnings:   e.state.WarningsShown,
		Extensions: e.state.ExtensionsGranted,
	}
}

// dispatch runs pending emissions with no lock held. Every status change
// reaches OnStateChange before its specific handler; expiry additionally
// notifies the authenticator and persists the session record.
func (e *Engine) dispatch(evs []emission) {
	for _, ev := range evs {
		switch ev.kind {
		case emitStateChange:
			e.emitStateChange(ev.state)
		case emitWarning:
			e.emitStateChange(ev.state)
			if h := e.handlers.OnWarning; h != nil {
				remaining := ev.remaining
				e.invoke("on_warning", func() { h(remaining) })
			}
		case emitFinalWarning:
			e.emitStateChange(ev.state)
			if h := e.handlers.OnFinalWarning; h != nil {
				remaining := ev.remaining
				e.invoke("on_final_warning", func() { h(remaining) })
			}
		case emitTimeout:
			e.emitStateChange(ev.state)
			if h := e.handlers.OnTimeout; h != nil {
				e.invoke("on_timeout", func() { h() })
			}
			if e.auth != nil {
				if err := e.auth.Logout(); err != nil {
					e.log.Error("auth.logout.fail", slog.String("err", err.Error()))
				}
			}
		case emitExtended:
			e.emitStateChange(ev.state)
			if h := e.handlers.OnExtended; h != nil {
				deadline := ev.deadline
				e.invoke("on_extended", func() { h(deadline) })
			}
		case emitActivity:
			if h := e.handlers.OnActivity; h != nil {
				kind := ev.activity
				e.invoke("on_activity", func() { h(kind) })
			}
		case emitRecord:
		}
		e.saveRecord(ev.record)
	}
}

func (e *Engine) emitStateChange(state State) {
	if h := e.handlers.OnStateChange; h != nil {
		e.invoke("on_state_change", func() { h(state) })
	}
}

// invoke shields the engine from consumer callbacks: a panicking handler
// is logged and the tick loop keeps running.
func (e *Engine) invoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("handler.panic", slog.String("handler", name), slog.Any("panic", r))
		}
	}()
	fn()
}

func (e *Engine) saveRecord(rec *store.Record) {
	if rec == nil || e.recStore == nil {
		return
	}
	if err := e.recStore.Save(rec); err != nil {
		e.log.Error("record.save.fail", slog.String("err", err.Error()))
	}
}
