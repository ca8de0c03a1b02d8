// Package bus provides the transports that relay session announcements
// between tabs (or processes) sharing one logical session.
package bus

import (
	"context"
	"errors"
)

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("bus: closed")

// Handler consumes one raw announcement payload. Handlers must not block;
// they run on the delivering goroutine.
type Handler func(payload []byte)

// Bus is the fan-out transport for cross-tab session announcements. The
// payload is opaque to the bus; decoding and reconciliation belong to the
// receiving engine. Implementations must be safe for concurrent use.
type Bus interface {
	// Publish broadcasts payload to every subscriber of channel,
	// including subscriptions made through this same bus instance.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe registers handler for payloads published to channel.
	// The returned function cancels the subscription; calling it more
	// than once is safe.
	Subscribe(ctx context.Context, channel string, handler Handler) (func(), error)

	// Close releases any resources held by the bus.
	Close() error
}
