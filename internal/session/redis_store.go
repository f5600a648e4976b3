package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store backed by Redis keys with TTL.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore constructs a Redis-backed flow store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Save stores the encoded flow payload with TTL, replacing any previous flow
// of the same kind and resetting its failure count.
func (s *RedisStore) Save(ctx context.Context, sessionID string, flow Flow, ttl time.Duration) error {
	payload, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("marshal flow: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key(sessionID, flow.Kind), payload, ttl)
		pipe.Del(ctx, failuresKey(sessionID, flow.Kind))
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist flow: %w", err)
	}
	return nil
}

// Load fetches and decodes a pending flow.
func (s *RedisStore) Load(ctx context.Context, sessionID string, kind Kind) (Flow, error) {
	raw, err := s.client.Get(ctx, key(sessionID, kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Flow{}, ErrFlowNotFound
		}
		return Flow{}, fmt.Errorf("load flow: %w", err)
	}
	var flow Flow
	if err := json.Unmarshal(raw, &flow); err != nil {
		return Flow{}, fmt.Errorf("decode flow: %w", err)
	}
	if flow.Kind != kind {
		return Flow{}, ErrFlowNotFound
	}
	return flow, nil
}

// Delete removes a pending flow and its failure counter.
func (s *RedisStore) Delete(ctx context.Context, sessionID string, kind Kind) error {
	if err := s.client.Del(ctx, key(sessionID, kind), failuresKey(sessionID, kind)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete flow: %w", err)
	}
	return nil
}

// RecordFailure increments the flow's failure counter atomically.
func (s *RedisStore) RecordFailure(ctx context.Context, sessionID string, kind Kind, ttl time.Duration) (int64, error) {
	k := failuresKey(sessionID, kind)
	n, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("count failure: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, k, ttl).Err(); err != nil {
			return n, fmt.Errorf("expire failure counter: %w", err)
		}
	}
	return n, nil
}
