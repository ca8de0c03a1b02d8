package bus

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus. It serves tests and hosts that run
// several engine instances (tabs) inside one process. Delivery is
// synchronous on the publisher's goroutine.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]Handler
	nextID int
	closed bool
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int]Handler)}
}

// Publish delivers payload to every handler subscribed to channel.
func (b *MemoryBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]Handler, 0, len(b.subs[channel]))
	for _, h := range b.subs[channel] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
	return nil
}

// Subscribe registers handler for channel.
func (b *MemoryBus) Subscribe(_ context.Context, channel string, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	id := b.nextID
	b.nextID++
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]Handler)
	}
	b.subs[channel][id] = handler

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if handlers, ok := b.subs[channel]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.subs, channel)
			}
		}
	}
	return cancel, nil
}

// Close drops all subscriptions; further publishes fail with ErrClosed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string]map[int]Handler)
	return nil
}
