package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parlorgames/parlor-backend/internal"
)

// Redis implements StateStore as JSON blobs under a TTL.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewRedisFromClient wraps an existing client; the integration tests use this
// to point at a container.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Close() error { return s.client.Close() }

// Ping verifies connectivity at bootstrap.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func stateKey(roomID string) string { return "gamestate:" + roomID }

func (s *Redis) PutState(ctx context.Context, roomID string, state *internal.GameState, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(roomID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("put state: %w", err)
	}
	return nil
}

func (s *Redis) GetState(ctx context.Context, roomID string) (*internal.GameState, error) {
	payload, err := s.client.Get(ctx, stateKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	var state internal.GameState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &state, nil
}

func (s *Redis) DeleteState(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, stateKey(roomID)).Err(); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}
