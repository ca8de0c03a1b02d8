package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/thural/vigil"
	"github.com/thural/vigil/bus"
	"github.com/thural/vigil/store"
)

// consoleAuth stands in for the host application's auth service. The engine
// only ever calls Logout, and only when the session truly expires.
type consoleAuth struct {
	tab string
}

func (a *consoleAuth) Logout() error {
	fmt.Printf("[%s] auth: logging out\n", a.tab)
	return nil
}

func main() {
	// Option 1: in-process bus, two engines acting as two browser tabs.
	// Just works out of the box, nothing external required.
	var transport bus.Bus = bus.NewMemoryBus()

	// Option 2: Redis bus, letting tabs in separate processes share the session.
	// Set VIGIL_REDIS_ADDR (and friends) and uncomment:
	/*
		redisBus, err := bus.NewRedisBusFromEnv()
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		transport = redisBus
	*/
	defer transport.Close()

	records, err := store.NewSQLite("vigil.db")
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	defer records.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Short durations so the demo plays out in seconds.
	cfg := vigil.Config{
		SessionDuration:  12 * time.Second,
		WarningTime:      6 * time.Second,
		FinalWarningTime: 3 * time.Second,
		MaxExtensions:    1,
		TickInterval:     250 * time.Millisecond,
		ActivityDebounce: time.Second,
		Bus:              transport,
		Store:            records,
		Logger:           logger,
	}

	tabA, err := newTab("tab-a", cfg)
	if err != nil {
		log.Fatalf("Failed to start tab A: %v", err)
	}
	defer tabA.Close()

	tabB, err := newTab("tab-b", cfg)
	if err != nil {
		log.Fatalf("Failed to start tab B: %v", err)
	}
	defer tabB.Close()

	// The user types in tab A for a bit; tab B stays idle but inherits
	// the slid deadline over the bus.
	for i := 0; i < 3; i++ {
		time.Sleep(2 * time.Second)
		tabA.Activity(vigil.ActivityKey)
	}

	// Go idle until the warning fires, then extend from tab B. Both tabs
	// return to Active.
	time.Sleep(8 * time.Second)
	if tabB.ExtendSession(0) {
		fmt.Println("[tab-b] extension granted")
	}

	// Now abandon both tabs and let the session expire.
	time.Sleep(13 * time.Second)

	m := tabA.Metrics()
	fmt.Printf("tab-a metrics: timeouts=%d extensions=%d active=%v idle=%v abandonment=%.2f\n",
		m.TimeoutCount, m.ExtensionCount, m.ActiveTime, m.IdleTime, m.AbandonmentRate)

	recent, err := records.Recent(5)
	if err != nil {
		log.Fatalf("Failed to read records: %v", err)
	}
	for _, rec := range recent {
		fmt.Printf("record: tab=%s outcome=%s duration=%v warnings=%d extensions=%d\n",
			rec.TabID, rec.Outcome, rec.Duration, rec.Warnings, rec.Extensions)
	}
}

// newTab starts one engine instance wired up the way a browser tab would be.
func newTab(name string, cfg vigil.Config) (*vigil.Engine, error) {
	cfg.TabID = name
	cfg.Auth = &consoleAuth{tab: name}

	return vigil.New(cfg, vigil.Handlers{
		OnWarning: func(remaining time.Duration) {
			fmt.Printf("[%s] warning: session expires in %v\n", name, remaining.Round(time.Second))
		},
		OnFinalWarning: func(remaining time.Duration) {
			fmt.Printf("[%s] FINAL warning: session expires in %v\n", name, remaining.Round(time.Second))
		},
		OnTimeout: func() {
			fmt.Printf("[%s] session expired\n", name)
		},
		OnExtended: func(deadline time.Time) {
			fmt.Printf("[%s] session extended until %s\n", name, deadline.Format(time.Kitchen))
		},
	})
}
