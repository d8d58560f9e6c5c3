// Package bootstrap assembles the gateway, change feed and side-effect
// recorder selected by configuration. Both binaries share it.
package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/config"
	"github.com/supportsphere/helpdesk/internal/fanout"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/gateway/memory"
	"github.com/supportsphere/helpdesk/internal/gateway/postgres"
	"github.com/supportsphere/helpdesk/internal/observability"
	"github.com/supportsphere/helpdesk/internal/persistence"
)

// Runtime holds the wired data layer.
type Runtime struct {
	Gateway  gateway.Gateway
	Hub      *changefeed.Hub
	Recorder fanout.Recorder
	Redis    *persistence.Redis

	logger  *zap.Logger
	runners []func(ctx context.Context) error
	wg      sync.WaitGroup
}

// New connects the configured drivers. The postgres gateway runs pending
// migrations first when enabled.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*Runtime, error) {
	logger = observability.OrNop(logger)
	rt := &Runtime{Hub: changefeed.NewHub(metrics), logger: logger}

	var publisher changefeed.Publisher = rt.Hub
	switch cfg.ChangeFeed.Driver {
	case config.ChangeFeedPostgres:
		// Triggers emit NOTIFY; the listener below feeds the hub.
		publisher = changefeed.NopPublisher{}
	case config.ChangeFeedRedis:
		client, err := persistence.ConnectRedis(ctx, cfg.Redis, cfg.App.Name, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Redis = client
		bridge := changefeed.NewRedisBridge(rt.Redis.Client, cfg.ChangeFeed.Channel, rt.Hub, cfg.ChangeFeed.ReconnectDelay, logger)
		publisher = bridge
		rt.runners = append(rt.runners, bridge.Run)
	}

	switch cfg.Gateway.Driver {
	case config.GatewayPostgres:
		pool, err := persistence.OpenPool(ctx, cfg.Postgres, cfg.App.Name, logger)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				pool.Close()
				rt.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		rt.Gateway = postgres.New(pool, postgres.WithPublisher(publisher), postgres.WithMetrics(metrics))
		if cfg.ChangeFeed.Driver == config.ChangeFeedPostgres {
			listener := changefeed.NewPGListener(pool, cfg.ChangeFeed.Channel, rt.Hub, cfg.ChangeFeed.ReconnectDelay, logger)
			rt.runners = append(rt.runners, listener.Run)
		}
	default:
		rt.Gateway = memory.New(memory.WithPublisher(publisher), memory.WithMetrics(metrics))
	}

	recorder, err := fanout.NewRecorder(cfg.SideEffects.Mode, rt.Gateway, logger, metrics)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Recorder = recorder
	return rt, nil
}

// Start launches the background change feed relays. They stop with ctx.
func (rt *Runtime) Start(ctx context.Context) {
	for _, run := range rt.runners {
		rt.wg.Add(1)
		go func(run func(context.Context) error) {
			defer rt.wg.Done()
			if err := run(ctx); err != nil {
				rt.logger.Error("change feed relay stopped", zap.Error(err))
			}
		}(run)
	}
}

// Wait blocks until every relay started by Start has returned.
func (rt *Runtime) Wait() {
	rt.wg.Wait()
}

// Close releases connections and wakes every subscriber.
func (rt *Runtime) Close() {
	rt.Hub.Close()
	if rt.Gateway != nil {
		rt.Gateway.Close()
	}
	rt.Redis.Close()
}
