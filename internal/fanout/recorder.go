package fanout

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/config"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/observability"
)

// WriteFunc performs a primary write against gw and returns the side effects
// it implies.
type WriteFunc func(gw gateway.Gateway) ([]Effect, error)

// Recorder runs primary writes and records their side effects. An error is
// returned only when the primary write fails.
type Recorder interface {
	Commit(ctx context.Context, write WriteFunc) error
}

// NewRecorder returns the recorder for mode (direct or outbox).
func NewRecorder(mode string, gw gateway.Gateway, logger *zap.Logger, metrics *observability.Metrics) (Recorder, error) {
	switch mode {
	case config.SideEffectsDirect:
		return NewDirect(gw, logger, metrics), nil
	case config.SideEffectsOutbox, "":
		return NewOutbox(gw), nil
	default:
		return nil, fmt.Errorf("unknown side effects mode %q", mode)
	}
}

// Direct applies effects right after the primary write. Failures are logged
// and counted, never returned.
type Direct struct {
	gw      gateway.Gateway
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewDirect builds a best-effort recorder.
func NewDirect(gw gateway.Gateway, logger *zap.Logger, metrics *observability.Metrics) *Direct {
	return &Direct{gw: gw, logger: observability.OrNop(logger), metrics: metrics}
}

// Commit implements Recorder.
func (d *Direct) Commit(ctx context.Context, write WriteFunc) error {
	effects, err := write(d.gw)
	if err != nil {
		return err
	}
	for _, effect := range effects {
		if err := Apply(ctx, d.gw, effect); err != nil {
			d.metrics.RecordSideEffectFailure(string(effect.Kind))
			d.logger.Warn("side effect failed",
				zap.String("kind", string(effect.Kind)),
				zap.String("action", effect.Action()),
				zap.String("ticket_id", effect.TicketID()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Outbox enqueues effects in the same unit of work as the primary write; a
// drainer delivers them later.
type Outbox struct {
	gw gateway.Gateway
}

// NewOutbox builds a transactional recorder.
func NewOutbox(gw gateway.Gateway) *Outbox {
	return &Outbox{gw: gw}
}

// Commit implements Recorder.
func (o *Outbox) Commit(ctx context.Context, write WriteFunc) error {
	return o.gw.InTx(ctx, func(tx gateway.Gateway) error {
		effects, err := write(tx)
		if err != nil {
			return err
		}
		for _, effect := range effects {
			payload, err := effect.Encode()
			if err != nil {
				return err
			}
			if err := tx.Outbox().Enqueue(ctx, string(effect.Kind), payload); err != nil {
				return err
			}
		}
		return nil
	})
}
