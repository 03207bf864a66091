package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/amedis-online/booking-agent/internal/flow"
)

const sessionTTL = 24 * time.Hour

// RedisStore keeps sessions in Redis as JSON values with a 24h TTL.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("booking-agent.internal.session")
	}
	return &RedisStore{redis: client, tracer: tracer}
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*flow.State, error) {
	ctx, span := s.tracer.Start(ctx, "session.load")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: load %s: %w", sessionID, err)
	}

	var state flow.State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: decode %s: %w", sessionID, err)
	}
	return &state, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, state *flow.State) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal %s: %w", sessionID, err)
	}
	if err := s.redis.Set(ctx, sessionKey(sessionID), data, sessionTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: delete %s: %w", sessionID, err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
