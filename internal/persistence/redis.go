package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/config"
)

// Redis carries the change feed channel between instances.
type Redis struct {
	Client *redis.Client
}

// RedisOptions builds client options from cfg. clientName shows up in
// CLIENT LIST.
func RedisOptions(cfg config.RedisConfig, clientName string) *redis.Options {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: clientName,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	return opts
}

// ConnectRedis opens a client and pings it. An unreachable server is an
// error: the change feed cannot relay without it.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, clientName string, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(RedisOptions(cfg, clientName))
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Redis{Client: client}, nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping reports whether the server answers; readiness checks use it.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
