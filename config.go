package vigil

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thural/vigil/bus"
	"github.com/thural/vigil/store"
)

// NoExtensions disables session extensions entirely when assigned to
// Config.MaxExtensions. A zero MaxExtensions means the default quota, so
// "no extensions" needs its own sentinel.
const NoExtensions = -1

// Config contains configuration options for the engine.
//
// Timing parameters and MaxExtensions can be adjusted later through
// UpdateConfig; collaborators (Bus, Store, Auth, Clock, Logger) and the
// feature toggles are fixed at construction.
type Config struct {
	// SessionDuration is the countdown length from the last reset,
	// extension, or deadline-sliding activity to expiry.
	// Default: 30 minutes.
	SessionDuration time.Duration

	// WarningTime is the lead time before the deadline at which the
	// session enters Warning. Must be shorter than SessionDuration.
	// Default: 5 minutes.
	WarningTime time.Duration

	// FinalWarningTime is the lead time before the deadline at which the
	// session enters FinalWarning. Must be shorter than WarningTime.
	// Default: 1 minute.
	FinalWarningTime time.Duration

	// MaxExtensions caps successful ExtendSession calls per session.
	// Zero means the default; set NoExtensions to disallow extensions.
	// Default: 3.
	MaxExtensions int

	// TickInterval is the period of the engine's single evaluation timer.
	// It bounds warning/expiry precision: a transition fires on the first
	// tick after its threshold passes.
	// Default: 1 second.
	TickInterval time.Duration

	// ActivityDebounce is the minimum spacing between coalesced activity
	// events. Input bursts inside the window collapse into one event.
	// Default: 5 seconds.
	ActivityDebounce time.Duration

	// DisableActivityTracking turns Activity calls into no-ops, so user
	// input never slides the deadline.
	DisableActivityTracking bool

	// DisableMonitoring stops metrics accumulation; Metrics() then returns
	// a zero snapshot.
	DisableMonitoring bool

	// Bus, when set, enables cross-tab synchronization: locally caused
	// transitions are broadcast on SyncChannel and inbound announcements
	// are merged into local state.
	Bus bus.Bus

	// SyncChannel is the bus channel session announcements travel on.
	// Tabs sharing one logical session must use the same channel.
	// Default: "vigil:session".
	SyncChannel string

	// TabID identifies this engine instance in cross-tab traffic.
	// Default: a random UUID.
	TabID string

	// Store, when set, receives one Record per ended session for local
	// usage analytics. Store failures are logged, never fatal.
	Store store.RecordStore

	// Auth, when set, is told to log out when the session expires.
	Auth Authenticator

	// Clock is the engine's time source. Default: the system clock.
	Clock Clock

	// Logger receives diagnostics (dropped sync payloads, handler panics,
	// store failures). If not provided, logs are discarded.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SessionDuration:  30 * time.Minute,
		WarningTime:      5 * time.Minute,
		FinalWarningTime: time.Minute,
		MaxExtensions:    3,
		TickInterval:     time.Second,
		ActivityDebounce: 5 * time.Second,
		SyncChannel:      "vigil:session",
	}
}

// applyDefaults fills in default values for zero-value fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.SessionDuration <= 0 {
		c.SessionDuration = defaults.SessionDuration
	}
	if c.WarningTime <= 0 {
		c.WarningTime = defaults.WarningTime
	}
	if c.FinalWarningTime <= 0 {
		c.FinalWarningTime = defaults.FinalWarningTime
	}
	if c.MaxExtensions == 0 {
		c.MaxExtensions = defaults.MaxExtensions
	}
	if c.MaxExtensions < 0 {
		c.MaxExtensions = 0
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.ActivityDebounce <= 0 {
		c.ActivityDebounce = defaults.ActivityDebounce
	}
	if c.SyncChannel == "" {
		c.SyncChannel = defaults.SyncChannel
	}
	if c.TabID == "" {
		c.TabID = uuid.NewString()
	}
	if c.Clock == nil {
		c.Clock = systemClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Validate checks the threshold ordering and timer parameters. An invalid
// config is rejected up front rather than producing an engine that never
// warns before it expires.
func (c *Config) Validate() error {
	if c.SessionDuration <= 0 {
		return fmt.Errorf("%w: session duration %v must be positive", ErrInvalidConfig, c.SessionDuration)
	}
	if c.WarningTime <= 0 || c.WarningTime >= c.SessionDuration {
		return fmt.Errorf("%w: warning time %v must be within (0, %v)", ErrInvalidConfig, c.WarningTime, c.SessionDuration)
	}
	if c.FinalWarningTime <= 0 || c.FinalWarningTime >= c.WarningTime {
		return fmt.Errorf("%w: final warning time %v must be within (0, %v)", ErrInvalidConfig, c.FinalWarningTime, c.WarningTime)
	}
	if c.MaxExtensions < 0 {
		return fmt.Errorf("%w: max extensions %d must be non-negative", ErrInvalidConfig, c.MaxExtensions)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval %v must be positive", ErrInvalidConfig, c.TickInterval)
	}
	return nil
}
