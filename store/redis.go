package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements RecordStore using a capped Redis list of JSON
// records plus a per-outcome counter hash. Suits hosts that already run
// Redis for the cross-tab bus and want analytics visible across machines.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	maxKeep int64
}

// NewRedisStore creates a Redis record store from a Redis client and a key
// prefix. prefix typically ends with a colon. maxKeep caps how many recent
// records are retained; 0 means the default of 1000.
func NewRedisStore(client *redis.Client, keyPrefix string, maxKeep int64) (*RedisStore, error) {
	if maxKeep <= 0 {
		maxKeep = 1000
	}
	return &RedisStore{
		client:  client,
		prefix:  keyPrefix,
		maxKeep: maxKeep,
	}, nil
}

func (s *RedisStore) listKey() string   { return s.prefix + "records" }
func (s *RedisStore) countsKey() string { return s.prefix + "outcomes" }

// Save appends one ended-session record and trims the list to maxKeep.
func (s *RedisStore) Save(rec *Record) error {
	ctx := context.Background()

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: failed to encode record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.listKey(), payload)
	pipe.LTrim(ctx, s.listKey(), 0, s.maxKeep-1)
	pipe.HIncrBy(ctx, s.countsKey(), string(rec.Outcome), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to save record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. Records are stored
// newest-at-head, so a plain range preserves the order.
func (s *RedisStore) Recent(limit int) ([]*Record, error) {
	ctx := context.Background()

	if limit <= 0 || int64(limit) > s.maxKeep {
		limit = int(s.maxKeep)
	}
	raw, err := s.client.LRange(ctx, s.listKey(), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to query records: %w", err)
	}

	records := make([]*Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("redis: failed to decode record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

// CountByOutcome returns the counter for outcome. Counters survive list
// trimming, so they reflect all records ever saved.
func (s *RedisStore) CountByOutcome(outcome Outcome) (int, error) {
	ctx := context.Background()

	count, err := s.client.HGet(ctx, s.countsKey(), string(outcome)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: failed to count records: %w", err)
	}
	return count, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
