package bus

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryBusFanOut(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	ctx := context.Background()
	var got1, got2 []string

	cancel1, err := b.Subscribe(ctx, "session", func(payload []byte) {
		got1 = append(got1, string(payload))
	})
	if err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}
	defer cancel1()

	cancel2, err := b.Subscribe(ctx, "session", func(payload []byte) {
		got2 = append(got2, string(payload))
	})
	if err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}
	defer cancel2()

	// A different channel must stay silent.
	other := 0
	cancelOther, err := b.Subscribe(ctx, "elsewhere", func([]byte) { other++ })
	if err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}
	defer cancelOther()

	if err := b.Publish(ctx, "session", []byte("hello")); err != nil {
		t.Fatalf("Publish() = %v", err)
	}

	if len(got1) != 1 || got1[0] != "hello" {
		t.Errorf("Subscriber 1 got %v, want [hello]", got1)
	}
	if len(got2) != 1 || got2[0] != "hello" {
		t.Errorf("Subscriber 2 got %v, want [hello]", got2)
	}
	if other != 0 {
		t.Errorf("Unrelated channel received %d messages", other)
	}
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	ctx := context.Background()
	count := 0
	cancel, err := b.Subscribe(ctx, "session", func([]byte) { count++ })
	if err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}

	if err := b.Publish(ctx, "session", []byte("one")); err != nil {
		t.Fatalf("Publish() = %v", err)
	}

	cancel()
	cancel() // safe to call again

	if err := b.Publish(ctx, "session", []byte("two")); err != nil {
		t.Fatalf("Publish() = %v", err)
	}
	if count != 1 {
		t.Errorf("Subscriber received %d messages, want 1", count)
	}
}

func TestMemoryBusClosed(t *testing.T) {
	b := NewMemoryBus()
	if err := b.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	ctx := context.Background()
	if err := b.Publish(ctx, "session", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after close = %v, want ErrClosed", err)
	}
	if _, err := b.Subscribe(ctx, "session", func([]byte) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe() after close = %v, want ErrClosed", err)
	}
}
