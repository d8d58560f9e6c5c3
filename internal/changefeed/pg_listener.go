package changefeed

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/observability"
)

// PGListener turns LISTEN/NOTIFY payloads emitted by the schema triggers into
// signals on a Publisher.
type PGListener struct {
	pool      *pgxpool.Pool
	channel   string
	target    Publisher
	reconnect time.Duration
	logger    *zap.Logger
}

// NewPGListener builds a listener for channel.
func NewPGListener(pool *pgxpool.Pool, channel string, target Publisher, reconnect time.Duration, logger *zap.Logger) *PGListener {
	if reconnect <= 0 {
		reconnect = 2 * time.Second
	}
	return &PGListener{
		pool:      pool,
		channel:   channel,
		target:    target,
		reconnect: reconnect,
		logger:    observability.OrNop(logger),
	}
}

// Run listens until ctx is done, reconnecting after connection failures.
func (l *PGListener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("change listener disconnected", zap.String("channel", l.channel), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.reconnect):
		}
	}
}

func (l *PGListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return err
	}
	l.logger.Info("listening for changes", zap.String("channel", l.channel))

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		signal, err := DecodeSignal([]byte(notification.Payload))
		if err != nil {
			l.logger.Warn("dropping malformed change payload", zap.String("payload", notification.Payload), zap.Error(err))
			continue
		}
		if err := l.target.Publish(ctx, signal); err != nil {
			l.logger.Warn("publish change signal", zap.String("table", signal.Table), zap.Error(err))
		}
	}
}
