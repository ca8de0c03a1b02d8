package vigil

import (
	"time"

	"golang.org/x/time/rate"
)

// ActivityKind labels the input signal reported to the engine.
type ActivityKind string

const (
	ActivityPointer ActivityKind = "pointer"
	ActivityKey     ActivityKind = "key"
	ActivityScroll  ActivityKind = "scroll"

	// ActivityAPI marks application-initiated activity, e.g. an in-flight
	// request proving the user is still working.
	ActivityAPI ActivityKind = "api"
)

// tracker coalesces bursts of input signals into single activity events.
// A pointer-move storm collapses to at most one event per debounce window.
type tracker struct {
	limiter *rate.Limiter
}

func newTracker(debounce time.Duration) *tracker {
	return &tracker{limiter: rate.NewLimiter(rate.Every(debounce), 1)}
}

// admit reports whether a signal at the given instant passes the debounce
// window. The instant comes from the engine clock so virtual time works.
func (t *tracker) admit(now time.Time) bool {
	return t.limiter.AllowN(now, 1)
}
