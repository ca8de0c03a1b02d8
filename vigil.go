// Package vigil implements a session-timeout lifecycle engine: a timed
// state machine that tracks a session deadline, escalates through warning
// stages, grants bounded user-initiated extensions, keeps sibling tabs
// sharing the session in agreement, and accumulates usage metrics.
//
// The engine is the UX layer of session expiry, not a security boundary;
// enforcing timeouts server-side stays the job of the backend.
package vigil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thural/vigil/bus"
	"github.com/thural/vigil/store"
)

// Authenticator is the engine's one external collaborator. It is injected
// at construction and told to log out only when the session truly expires;
// the engine itself never touches the network.
type Authenticator interface {
	Logout() error
}

// Handlers are the synchronous lifecycle callbacks consumed by the host UI.
// Nil fields are skipped. A panicking handler is contained and logged; it
// cannot stop the engine.
type Handlers struct {
	// OnStateChange fires with a snapshot after every status change,
	// before the more specific callback for that change.
	OnStateChange func(State)

	// OnWarning and OnFinalWarning fire once per stage with the time
	// remaining until expiry.
	OnWarning      func(remaining time.Duration)
	OnFinalWarning func(remaining time.Duration)

	// OnTimeout fires once when the session expires.
	OnTimeout func()

	// OnExtended fires after a granted extension with the new deadline.
	OnExtended func(newDeadline time.Time)

	// OnActivity fires for each coalesced activity event.
	OnActivity func(kind ActivityKind)
}

// Engine composes the clock, activity tracker, state machine, cross-tab
// synchronizer, and metrics aggregator behind one facade.
type Engine struct {
	mu    sync.Mutex
	cfg   Config
	state State
	agg   *aggregator
	track *tracker

	// Collaborators and the tick period are fixed at construction and
	// copied out of cfg so goroutines dispatching after unlock read them
	// without the lock. cfg itself is mutable through UpdateConfig and
	// only touched with mu held.
	clock        Clock
	log          *slog.Logger
	tabID        string
	bus          bus.Bus
	syncChannel  string
	auth         Authenticator
	recStore     store.RecordStore
	tickInterval time.Duration
	handlers     Handlers

	// lastTick and sawActivity drive the active/idle apportionment of
	// each tick interval.
	lastTick    time.Time
	sawActivity bool

	closed      bool
	stop        chan struct{}
	done        chan struct{}
	unsubscribe func()
}

// New creates an engine and starts its tick loop. The session begins
// immediately: status Active, deadline now + SessionDuration.
func New(cfg Config, handlers Handlers) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:          cfg,
		agg:          newAggregator(!cfg.DisableMonitoring),
		track:        newTracker(cfg.ActivityDebounce),
		clock:        cfg.Clock,
		log:          cfg.Logger,
		tabID:        cfg.TabID,
		bus:          cfg.Bus,
		syncChannel:  cfg.SyncChannel,
		auth:         cfg.Auth,
		recStore:     cfg.Store,
		tickInterval: cfg.TickInterval,
		handlers:     handlers,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	now := e.clock.Now()
	e.state = State{
		Status:        StatusActive,
		Deadline:      now.Add(cfg.SessionDuration),
		SessionStart:  now,
		LastActivity:  now,
		MaxExtensions: cfg.MaxExtensions,
	}
	e.lastTick = now

	if e.bus != nil {
		unsub, err := e.bus.Subscribe(context.Background(), e.syncChannel, e.reconcile)
		if err != nil {
			return nil, fmt.Errorf("vigil: failed to subscribe to sync channel: %w", err)
		}
		e.unsubscribe = unsub
	}

	go e.run()
	return e, nil
}

// run is the engine's single periodic timer. One tick drives every
// threshold instead of one timer per threshold, which keeps the state cheap
// to broadcast and bounds drift to one tick interval.
func (e *Engine) run() {
	defer close(e.done)
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.tick(e.clock.Now())
		case <-e.stop:
			return
		}
	}
}

// tick evaluates the state machine once against the given instant.
func (e *Engine) tick(now time.Time) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	if interval := now.Sub(e.lastTick); interval > 0 {
		e.agg.tick(interval, e.sawActivity)
		e.lastTick = now
		e.sawActivity = false
	}

	evs := e.advance(now)
	var ann *Announce
	if len(evs) > 0 {
		ann = e.announceLocked(now)
	}
	e.mu.Unlock()

	e.dispatch(evs)
	e.publish(ann)
}

// State returns a snapshot of the current session state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Metrics returns a snapshot of the cumulative usage metrics.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agg.snapshot()
}

// Config returns the engine's effective configuration, defaults applied.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// UpdateConfig adjusts timing parameters and the extension quota. Zero
// fields keep their current values. The updated quota applies from the next
// ResetSession; extensions already granted under the old cap stay granted.
// Collaborators, toggles, and TickInterval are fixed at construction and
// ignored here.
func (e *Engine) UpdateConfig(partial Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}

	next := e.cfg
	if partial.SessionDuration > 0 {
		next.SessionDuration = partial.SessionDuration
	}
	if partial.WarningTime > 0 {
		next.WarningTime = partial.WarningTime
	}
	if partial.FinalWarningTime > 0 {
		next.FinalWarningTime = partial.FinalWarningTime
	}
	if partial.MaxExtensions != 0 {
		next.MaxExtensions = partial.MaxExtensions
		if next.MaxExtensions < 0 {
			next.MaxExtensions = 0
		}
	}
	if partial.ActivityDebounce > 0 {
		next.ActivityDebounce = partial.ActivityDebounce
	}
	if err := next.Validate(); err != nil {
		return err
	}

	if next.ActivityDebounce != e.cfg.ActivityDebounce {
		e.track = newTracker(next.ActivityDebounce)
	}
	e.cfg = next
	return nil
}

// ExtendSession pushes the deadline to now + d (or now + SessionDuration if
// d <= 0) and consumes one unit of the extension quota. It returns false,
// mutating nothing, once the session has expired or the quota is exhausted;
// that is a policy outcome, not an error.
func (e *Engine) ExtendSession(d time.Duration) bool {
	now := e.clock.Now()

	e.mu.Lock()
	if e.closed || !CanExtend(e.state) {
		e.mu.Unlock()
		return false
	}
	e.state.Deadline = NextDeadline(now, d, e.cfg.SessionDuration)
	e.state.ExtensionsGranted++
	e.state.LastActivity = now
	e.state.Status = StatusExtended
	e.agg.extension()
	ev := emission{kind: emitExtended, state: e.state, deadline: e.state.Deadline}
	ann := e.announceLocked(now)
	e.mu.Unlock()

	e.dispatch([]emission{ev})
	e.publish(ann)
	return true
}

// ResetSession starts a fresh session epoch: status Active, a full
// deadline, counters zeroed. The previous session, unless it had already
// expired, is recorded as a graceful end. Cumulative metrics are untouched.
func (e *Engine) ResetSession() {
	now := e.clock.Now()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	var evs []emission
	if e.state.Status != StatusExpired {
		rec := e.endSessionLocked(now, store.OutcomeReset)
		evs = append(evs, emission{record: rec, kind: emitStateChange})
	}
	e.state = State{
		Status:        StatusActive,
		Deadline:      now.Add(e.cfg.SessionDuration),
		SessionStart:  now,
		LastActivity:  now,
		MaxExtensions: e.cfg.MaxExtensions,
	}
	if len(evs) > 0 {
		evs[0].state = e.state
	} else {
		evs = append(evs, emission{kind: emitStateChange, state: e.state})
	}
	ann := e.announceLocked(now)
	e.mu.Unlock()

	e.dispatch(evs)
	e.publish(ann)
}

// Activity reports a user input signal. Bursts are coalesced; a coalesced
// event updates LastActivity and, only while the session is Active, slides
// the deadline out to now + SessionDuration. Activity during a warning
// stage deliberately does not move the deadline: warnings are acknowledged
// by an explicit extension or reset, not by incidental mouse movement.
func (e *Engine) Activity(kind ActivityKind) {
	now := e.clock.Now()

	e.mu.Lock()
	if e.closed || e.cfg.DisableActivityTracking {
		e.mu.Unlock()
		return
	}
	e.sawActivity = true
	if !e.track.admit(now) {
		e.mu.Unlock()
		return
	}
	e.state.LastActivity = now
	var ann *Announce
	if e.state.Status == StatusActive {
		e.state.Deadline = now.Add(e.cfg.SessionDuration)
		ann = e.announceLocked(now)
	}
	ev := emission{kind: emitActivity, state: e.state, activity: kind}
	e.mu.Unlock()

	e.dispatch([]emission{ev})
	e.publish(ann)
}

// Close disposes the engine: the tick timer stops, the bus subscription is
// cancelled, and no callback fires afterwards. Idempotent and safe to call
// from any goroutine. Injected collaborators (bus, store) are owned by the
// caller and stay open.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	close(e.stop)
	<-e.done
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	return nil
}

// announceLocked builds the broadcast for the current state, or nil when
// cross-tab sync is off. Caller holds the lock; publishing happens after
// unlock.
func (e *Engine) announceLocked(now time.Time) *Announce {
	if e.bus == nil {
		return nil
	}
	return &Announce{
		TabID:             e.tabID,
		Status:            e.state.Status,
		Deadline:          e.state.Deadline,
		SessionStart:      e.state.SessionStart,
		ExtensionsGranted: e.state.ExtensionsGranted,
		OriginTimestamp:   now,
	}
}

// publish broadcasts an announcement to sibling tabs. Transport failures
// are logged and tolerated; the local state machine stays authoritative.
func (e *Engine) publish(ann *Announce) {
	if ann == nil || e.bus == nil {
		return
	}
	payload, err := json.Marshal(ann)
	if err != nil {
		e.log.Error("sync.encode.fail", slog.String("err", err.Error()))
		return
	}
	if err := e.bus.Publish(context.Background(), e.syncChannel, payload); err != nil {
		e.log.Warn("sync.publish.fail", slog.String("err", err.Error()))
	}
}
