package database

import (
	"context"
	"fmt"
	"time"

	"github.com/certexam/certexam-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// The startup ping is retried with a linear backoff.
const (
	redisPingAttempts = 3
	redisPingTimeout  = 3 * time.Second
	redisPingBackoff  = time.Second
)

// NewRedisClient creates and validates a Redis client connection.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	if err := pingRedis(ctx, rdb, log); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	return rdb, nil
}

func pingRedis(ctx context.Context, rdb *redis.Client, log zerolog.Logger) error {
	var err error
	for attempt := 1; attempt <= redisPingAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return nil
		}
		if attempt == redisPingAttempts {
			break
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("Redis not reachable yet, retrying")
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping redis: %w", ctx.Err())
		case <-time.After(redisPingBackoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("ping redis: %w", err)
}
