package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis ledger.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// Redis stores entries as JSON strings that expire after the configured TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

// NewRedis connects to Redis and pings it before returning.
func NewRedis(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")
	return NewRedisFromClient(rdb, cfg, logger), nil
}

// NewRedisFromClient wraps an existing client. The ledger takes ownership of it.
func NewRedisFromClient(client *redis.Client, cfg *RedisConfig, logger zerolog.Logger) *Redis {
	return &Redis{
		client: client,
		ttl:    cfg.TTL,
		prefix: cfg.KeyPrefix,
		logger: logger.With().Str("component", "RedisLedger").Logger(),
	}
}

func (l *Redis) Lookup(ctx context.Context, key string) (Entry, error) {
	raw, err := l.client.Get(ctx, l.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("redis get for %s: %w", key, err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal ledger entry %s: %w", key, err)
	}
	l.logger.Debug().Str("key", key).Msg("Ledger hit.")
	return e, nil
}

func (l *Redis) Record(ctx context.Context, key string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}
	if err := l.client.Set(ctx, l.prefix+key, raw, l.ttl).Err(); err != nil {
		return fmt.Errorf("redis set for %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client connection.
func (l *Redis) Close() error {
	l.logger.Info().Msg("Closing Redis client connection...")
	return l.client.Close()
}
