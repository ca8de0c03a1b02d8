package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus on Redis pub/sub, letting tabs that live in
// separate processes (or separate machines behind one user) share a
// logical session.
type RedisBus struct {
	client *redis.Client
	prefix string

	// ownsClient is set when the bus created the client itself and
	// should close it on Close.
	ownsClient bool

	mu     sync.Mutex
	subs   map[int]*redis.PubSub
	nextID int
	closed bool
}

// NewRedisBus creates a Redis bus from an existing client and a channel
// prefix. prefix typically ends with a colon.
func NewRedisBus(client *redis.Client, channelPrefix string) (*RedisBus, error) {
	return &RedisBus{
		client: client,
		prefix: channelPrefix,
		subs:   make(map[int]*redis.PubSub),
	}, nil
}

// RedisConfig contains configuration options for Redis. The env tags let
// NewRedisBusFromEnv populate it from the environment.
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string `env:"VIGIL_REDIS_ADDR,default=localhost:6379"`

	// Password is the Redis password (empty for no auth)
	Password string `env:"VIGIL_REDIS_PASSWORD"`

	// DB is the Redis database number (0-15)
	DB int `env:"VIGIL_REDIS_DB,default=0"`

	// ChannelPrefix is prepended to all channels (default: "vigil:")
	// typically ends with a colon.
	ChannelPrefix string `env:"VIGIL_REDIS_CHANNEL_PREFIX,default=vigil:"`
}

// NewRedisBusFromConfig creates a Redis bus with its own client.
func NewRedisBusFromConfig(cfg RedisConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}

	prefix := cfg.ChannelPrefix
	if prefix == "" {
		prefix = "vigil:"
	}

	return &RedisBus{
		client:     client,
		prefix:     prefix,
		ownsClient: true,
		subs:       make(map[int]*redis.PubSub),
	}, nil
}

// NewRedisBusFromEnv builds a Redis bus from VIGIL_REDIS_* environment
// variables, falling back to the defaults in RedisConfig.
func NewRedisBusFromEnv() (*RedisBus, error) {
	var cfg RedisConfig
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("redis: failed to decode environment: %w", err)
	}
	return NewRedisBusFromConfig(cfg)
}

// Publish broadcasts payload on the prefixed channel.
func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := b.client.Publish(ctx, b.prefix+channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: failed to publish: %w", err)
	}
	return nil
}

// Subscribe consumes the prefixed channel on a background goroutine and
// feeds payloads to handler until the subscription is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, channel string, handler Handler) (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	ps := b.client.Subscribe(ctx, b.prefix+channel)
	id := b.nextID
	b.nextID++
	b.subs[id] = ps
	b.mu.Unlock()

	// Confirm the subscription before returning so no announcement
	// published after Subscribe is missed.
	if _, err := ps.Receive(ctx); err != nil {
		b.drop(id)
		return nil, fmt.Errorf("redis: failed to subscribe: %w", err)
	}

	go func() {
		for msg := range ps.Channel() {
			handler([]byte(msg.Payload))
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { b.drop(id) })
	}
	return cancel, nil
}

// drop closes and forgets one subscription.
func (b *RedisBus) drop(id int) {
	b.mu.Lock()
	ps, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

// Close cancels all subscriptions and, if the bus created its own client,
// closes it.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[int]*redis.PubSub)
	b.mu.Unlock()

	var errs []error
	for _, ps := range subs {
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.ownsClient {
		if err := b.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("redis: errors during close: %v", errs)
	}
	return nil
}
