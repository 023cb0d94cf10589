package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/model"
)

// Compile-time check.
var _ Store = (*RedisStore)(nil)

// RedisStore keeps the session as one JSON document under a single key.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed session store. A zero ttl keeps
// the record until it is overwritten or deleted.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.With().Str("store", "redis").Str("key", key).Logger(),
	}
}

// Save overwrites the session record with the full state.
func (s *RedisStore) Save(ctx context.Context, state *model.GameState) error {
	if len(state.History) == 0 {
		s.logger.Debug().Msg("empty history, nothing to persist")
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize session state: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session state in redis: %w", err)
	}
	return nil
}

// Load reads and validates the session record. Missing, unreachable or
// corrupt data degrades to (nil, nil).
func (s *RedisStore) Load(ctx context.Context) (*model.GameState, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.logger.Debug().Msg("no save data")
		} else {
			s.logger.Warn().Err(err).Msg("failed to read session state from redis, treating as no save data")
		}
		return nil, nil
	}

	st, err := decodeState(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding invalid save data")
		return nil, nil
	}
	return st, nil
}
