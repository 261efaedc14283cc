package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"alphaminer/internal/config"
	apperrors "alphaminer/internal/errors"
	"alphaminer/internal/miner"
)

const defaultCheckpointKey = "alphaminer:checkpoint"

// RedisStore persists checkpoints under a single Redis key, for runs that
// move between hosts or have no durable local disk.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Redis-backed checkpoint store
func NewRedisStore(cfg config.RedisCheckpointConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, key: defaultCheckpointKey}, nil
}

// Save writes the session snapshot to Redis
func (s *RedisStore) Save(ctx context.Context, session *miner.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeCheckpoint, "failed to encode checkpoint")
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeCheckpoint, "failed to store checkpoint in Redis")
	}
	return nil
}

// Load reads the last saved session. A missing key returns nil without an
// error.
func (s *RedisStore) Load(ctx context.Context) (*miner.Session, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeCheckpoint, "failed to load checkpoint from Redis")
	}

	var session miner.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeCheckpoint, "failed to decode checkpoint")
	}
	return &session, nil
}

// Close releases the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
