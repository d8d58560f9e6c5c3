package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httptransport "github.com/supportsphere/helpdesk/internal/api/http"
	"github.com/supportsphere/helpdesk/internal/api/http/handlers"
	"github.com/supportsphere/helpdesk/internal/bootstrap"
	"github.com/supportsphere/helpdesk/internal/config"
	"github.com/supportsphere/helpdesk/internal/identity"
	"github.com/supportsphere/helpdesk/internal/observability"
	"github.com/supportsphere/helpdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	rt, err := bootstrap.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Fatal("failed to build data layer", zap.Error(err))
	}
	defer rt.Close()
	rt.Start(ctx)

	if cfg.SideEffects.Mode == config.SideEffectsOutbox {
		drainer := worker.NewOutboxDrainer(rt.Gateway, cfg.SideEffects, logger, metrics)
		go func() {
			if err := drainer.Start(ctx, cfg.SideEffects.OutboxSchedule); err != nil {
				logger.Fatal("outbox drainer", zap.Error(err))
			}
		}()
	}

	tokens := identity.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authService := identity.NewService(rt.Gateway, tokens, cfg.Auth.BcryptCost)
	repos := handlers.Repositories{
		Gateway:  rt.Gateway,
		Feed:     rt.Hub,
		Recorder: rt.Recorder,
		Logger:   logger,
		Metrics:  metrics,
	}

	deps := []handlers.Dependency{{Name: "gateway", Pinger: rt.Gateway}}
	if rt.Redis != nil {
		deps = append(deps, handlers.Dependency{Name: "redis", Pinger: rt.Redis})
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	routes := httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps...),
		Users:         handlers.NewUsersHandler(authService),
		Tickets:       handlers.NewTicketsHandler(repos),
		Conversations: handlers.NewConversationHandler(repos),
		Notifications: handlers.NewNotificationsHandler(repos),
		Directory:     handlers.NewDirectoryHandler(repos),
		Changes:       handlers.NewChangesHandler(repos),
		Identity:      identity.NewMiddleware(tokens, rt.Gateway.Directory()),
	}
	if cfg.Metrics.Enabled {
		routes.MetricsPath = cfg.Metrics.Path
		routes.Metrics = adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
	rt.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
