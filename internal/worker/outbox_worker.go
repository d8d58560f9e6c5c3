// Package worker runs background jobs: the outbox drainer that delivers
// audit entries and notifications recorded alongside primary writes.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/config"
	"github.com/supportsphere/helpdesk/internal/fanout"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/observability"
)

const (
	defaultLease  = 30 * time.Second
	baseBackoff   = time.Second
	maxBackoff    = 5 * time.Minute
	defaultBatch  = 100
	defaultMaxTry = 10
)

// DrainResult summarizes one pass over the outbox.
type DrainResult struct {
	Delivered int
	Retried   int
	Dead      int
}

// OutboxDrainer claims due outbox entries and applies them.
type OutboxDrainer struct {
	gw          gateway.Gateway
	logger      *zap.Logger
	metrics     *observability.Metrics
	batch       int
	maxAttempts int
	lease       time.Duration
	now         func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewOutboxDrainer builds a drainer from the side-effect settings.
func NewOutboxDrainer(gw gateway.Gateway, cfg config.SideEffectsConfig, logger *zap.Logger, metrics *observability.Metrics) *OutboxDrainer {
	batch := cfg.OutboxBatch
	if batch <= 0 {
		batch = defaultBatch
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxTry
	}
	return &OutboxDrainer{
		gw:          gw,
		logger:      observability.OrNop(logger).With(zap.String("worker", "outbox")),
		metrics:     metrics,
		batch:       batch,
		maxAttempts: maxAttempts,
		lease:       defaultLease,
		now:         time.Now,
	}
}

// RunOnce drains one batch.
func (d *OutboxDrainer) RunOnce(ctx context.Context) (DrainResult, error) {
	var res DrainResult
	entries, err := d.gw.Outbox().Claim(ctx, d.batch, d.lease)
	if err != nil {
		d.metrics.RecordOutboxDrained(err)
		return res, fmt.Errorf("claim outbox: %w", err)
	}

	for _, entry := range entries {
		effect, err := fanout.Decode(entry.Payload)
		if err == nil {
			err = fanout.Apply(ctx, d.gw, effect)
		}
		if err == nil {
			if err := d.gw.Outbox().Complete(ctx, entry.ID); err != nil {
				d.logger.Error("complete outbox entry", zap.String("id", entry.ID), zap.Error(err))
			}
			d.metrics.RecordOutboxDrained(nil)
			res.Delivered++
			continue
		}

		d.metrics.RecordOutboxDrained(err)
		attempts := entry.Attempts + 1
		retryAt := time.Time{}
		if attempts < d.maxAttempts {
			retryAt = d.now().Add(backoff(attempts))
			res.Retried++
		} else {
			res.Dead++
		}
		d.logger.Warn("outbox delivery failed",
			zap.String("id", entry.ID),
			zap.String("kind", entry.Kind),
			zap.String("ticket_id", effect.TicketID()),
			zap.Int("attempts", attempts),
			zap.Bool("dead", retryAt.IsZero()),
			zap.Error(err),
		)
		if ferr := d.gw.Outbox().Fail(ctx, entry.ID, err.Error(), retryAt); ferr != nil {
			d.logger.Error("record outbox failure", zap.String("id", entry.ID), zap.Error(ferr))
		}
	}
	return res, nil
}

// Start schedules RunOnce on spec (cron syntax or @every) and blocks until ctx
// is done. Overlapping runs are skipped.
func (d *OutboxDrainer) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		res, err := d.RunOnce(ctx)
		if err != nil {
			d.logger.Error("drain outbox", zap.Error(err))
			return
		}
		if res != (DrainResult{}) {
			d.logger.Info("outbox drained",
				zap.Int("delivered", res.Delivered),
				zap.Int("retried", res.Retried),
				zap.Int("dead", res.Dead),
			)
		}
	}); err != nil {
		return fmt.Errorf("worker: invalid outbox schedule %q: %w", spec, err)
	}

	d.mu.Lock()
	d.cron = c
	d.mu.Unlock()

	c.Start()
	d.logger.Info("outbox drainer started", zap.String("schedule", spec))
	<-ctx.Done()
	<-c.Stop().Done()
	d.logger.Info("outbox drainer stopped")
	return nil
}

// Running reports whether Start has scheduled the job.
func (d *OutboxDrainer) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cron != nil && len(d.cron.Entries()) > 0
}

func backoff(attempts int) time.Duration {
	delay := baseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
