package vigil

import (
	"testing"
	"time"

	"github.com/thural/vigil/store"
)

func TestMetricsActiveIdleApportionment(t *testing.T) {
	e, clock := newTestEngine(t, nil, Handlers{})

	// First interval contains an activity signal, second does not.
	e.Activity(ActivityKey)
	e.tick(clock.Advance(10 * time.Second))
	e.tick(clock.Advance(15 * time.Second))

	m := e.Metrics()
	if m.ActiveTime != 10*time.Second {
		t.Errorf("ActiveTime = %v, want 10s", m.ActiveTime)
	}
	if m.IdleTime != 15*time.Second {
		t.Errorf("IdleTime = %v, want 15s", m.IdleTime)
	}
}

func TestMetricsCountCoalescedSignals(t *testing.T) {
	e, clock := newTestEngine(t, nil, Handlers{})

	// Signals swallowed by the debounce window still mark the interval
	// as active.
	e.Activity(ActivityPointer)
	e.Activity(ActivityPointer)
	e.tick(clock.Advance(5 * time.Second))

	clock.Advance(time.Second)
	e.Activity(ActivityScroll)
	e.tick(clock.Advance(4 * time.Second))

	m := e.Metrics()
	if want := 10 * time.Second; m.ActiveTime != want {
		t.Errorf("ActiveTime = %v, want %v", m.ActiveTime, want)
	}
	if m.IdleTime != 0 {
		t.Errorf("IdleTime = %v, want 0", m.IdleTime)
	}
}

func TestMonitoringDisabled(t *testing.T) {
	e, clock := newTestEngine(t, func(cfg *Config) { cfg.DisableMonitoring = true }, Handlers{})

	e.Activity(ActivityKey)
	e.tick(clock.Advance(10 * time.Second))
	e.tick(clock.Advance(120 * time.Second))
	e.ResetSession()

	if m := e.Metrics(); m != (Metrics{}) {
		t.Errorf("Metrics with monitoring disabled = %+v, want zero", m)
	}
}

func TestSessionRecordsPersisted(t *testing.T) {
	records := store.NewMemoryStore()
	e, clock := newTestEngine(t, func(cfg *Config) {
		cfg.Store = records
		cfg.TabID = "tab-rec"
	}, Handlers{})

	// First session runs into the ground.
	e.tick(clock.Advance(95 * time.Second))
	e.tick(clock.Advance(25 * time.Second))
	if got := e.State().Status; got != StatusExpired {
		t.Fatalf("Status = %s, want %s", got, StatusExpired)
	}

	// Resetting an already-expired session adds no second record.
	e.ResetSession()

	// Second session ends gracefully after one extension.
	clock.Advance(30 * time.Second)
	if !e.ExtendSession(time.Minute) {
		t.Fatal("ExtendSession returned false")
	}
	clock.Advance(30 * time.Second)
	e.ResetSession()

	recent, err := records.Recent(10)
	if err != nil {
		t.Fatalf("Recent() = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent() returned %d records, want 2", len(recent))
	}

	// Newest first: the graceful end, then the expiry.
	graceful, expired := recent[0], recent[1]
	if graceful.Outcome != store.OutcomeReset {
		t.Errorf("Newest outcome = %s, want %s", graceful.Outcome, store.OutcomeReset)
	}
	if graceful.Extensions != 1 {
		t.Errorf("Graceful record extensions = %d, want 1", graceful.Extensions)
	}
	if graceful.Duration != 60*time.Second {
		t.Errorf("Graceful record duration = %v, want 60s", graceful.Duration)
	}

	if expired.Outcome != store.OutcomeExpired {
		t.Errorf("Oldest outcome = %s, want %s", expired.Outcome, store.OutcomeExpired)
	}
	if expired.TabID != "tab-rec" {
		t.Errorf("Record tab = %s, want tab-rec", expired.TabID)
	}
	if expired.Warnings != 1 {
		t.Errorf("Expired record warnings = %d, want 1", expired.Warnings)
	}
	if expired.Duration != 120*time.Second {
		t.Errorf("Expired record duration = %v, want 120s", expired.Duration)
	}

	count, err := records.CountByOutcome(store.OutcomeExpired)
	if err != nil {
		t.Fatalf("CountByOutcome() = %v", err)
	}
	if count != 1 {
		t.Errorf("CountByOutcome(expired) = %d, want 1", count)
	}
}
