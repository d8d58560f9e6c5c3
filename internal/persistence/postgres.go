package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/config"
)

// ErrNoDSN is returned when a postgres pool is requested without a DSN.
var ErrNoDSN = errors.New("POSTGRES_DSN is empty")

// PoolConfig turns cfg into a pgx pool configuration. Connections report
// appName as their application_name unless the DSN already sets one.
func PoolConfig(cfg config.PostgresConfig, appName string) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse POSTGRES_DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if _, set := poolCfg.ConnConfig.RuntimeParams["application_name"]; !set && appName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = appName
	}
	return poolCfg, nil
}

// OpenPool connects to postgres and verifies the connection before
// returning. The caller owns the pool.
func OpenPool(ctx context.Context, cfg config.PostgresConfig, appName string, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(cfg, appName)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s/%s: %w", poolCfg.ConnConfig.Host, poolCfg.ConnConfig.Database, err)
	}

	logger.Info("connected to postgres",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return pool, nil
}
