// Package postgres implements the persistence gateway on PostgreSQL via a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/observability"
)

const (
	uniqueViolation      = "23505"
	foreignKeyViolation  = "23503"
	invalidTextRepresent = "22P02"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPublisher routes change signals to p. Leave unset when the database
// triggers feed a LISTEN-based change feed.
func WithPublisher(p changefeed.Publisher) Option {
	return func(g *Gateway) {
		if p != nil {
			g.publisher = p
		}
	}
}

// WithMetrics records gateway operations.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// Gateway implements gateway.Gateway.
type Gateway struct {
	pool      *pgxpool.Pool
	q         querier
	tx        *txState
	publisher changefeed.Publisher
	metrics   *observability.Metrics
}

type txState struct {
	pending []changefeed.Signal
}

// New wraps pool.
func New(pool *pgxpool.Pool, opts ...Option) *Gateway {
	g := &Gateway{pool: pool, q: pool, publisher: changefeed.NopPublisher{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Tickets implements gateway.Gateway.
func (g *Gateway) Tickets() gateway.TicketStore { return ticketStore{g} }

// Messages implements gateway.Gateway.
func (g *Gateway) Messages() gateway.MessageStore { return messageStore{g} }

// AuditLogs implements gateway.Gateway.
func (g *Gateway) AuditLogs() gateway.AuditLogStore { return auditStore{g} }

// Notifications implements gateway.Gateway.
func (g *Gateway) Notifications() gateway.NotificationStore { return notificationStore{g} }

// Directory implements gateway.Gateway.
func (g *Gateway) Directory() gateway.DirectoryStore { return directoryStore{g} }

// Accounts implements gateway.Gateway.
func (g *Gateway) Accounts() gateway.AccountStore { return accountStore{g} }

// Outbox implements gateway.Gateway.
func (g *Gateway) Outbox() gateway.OutboxStore { return outboxStore{g} }

// InTx implements gateway.Gateway.
func (g *Gateway) InTx(ctx context.Context, fn func(tx gateway.Gateway) error) error {
	if g.tx != nil {
		return fn(g)
	}

	tx, err := g.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	txGateway := &Gateway{
		pool:      g.pool,
		q:         tx,
		tx:        &txState{},
		publisher: g.publisher,
		metrics:   g.metrics,
	}

	if err := fn(txGateway); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	g.publish(ctx, txGateway.tx.pending)
	return nil
}

// Ping implements gateway.Gateway.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.pool.Ping(ctx)
}

// Close implements gateway.Gateway.
func (g *Gateway) Close() {
	g.pool.Close()
}

func (g *Gateway) run(ctx context.Context, op string, fn func(q querier) ([]changefeed.Signal, error)) error {
	signals, err := fn(g.q)
	err = translate(err)
	g.metrics.RecordGatewayOp(op, err)
	if err != nil {
		return err
	}
	if g.tx != nil {
		g.tx.pending = append(g.tx.pending, signals...)
		return nil
	}
	g.publish(ctx, signals)
	return nil
}

func (g *Gateway) publish(ctx context.Context, signals []changefeed.Signal) {
	for _, s := range signals {
		_ = g.publisher.Publish(ctx, s)
	}
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return gateway.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return errors.Join(gateway.ErrConflict, err)
		case foreignKeyViolation:
			// The referenced team, profile or ticket does not exist.
			return errors.Join(gateway.ErrNotFound, err)
		case invalidTextRepresent:
			// A malformed uuid cannot match any row.
			return errors.Join(gateway.ErrNotFound, err)
		}
	}
	return err
}

var _ gateway.Gateway = (*Gateway)(nil)
