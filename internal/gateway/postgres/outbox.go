package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

type outboxStore struct{ g *Gateway }

func (s outboxStore) Enqueue(ctx context.Context, kind string, payload []byte) error {
	const query = `INSERT INTO outbox (kind, payload) VALUES ($1, $2)`
	return s.g.run(ctx, gateway.OpOutboxEnqueue, func(db querier) ([]changefeed.Signal, error) {
		_, err := db.Exec(ctx, query, kind, payload)
		return nil, err
	})
}

// Claim leases due entries with SKIP LOCKED so concurrent drainers never
// pick the same row.
func (s outboxStore) Claim(ctx context.Context, limit int, lease time.Duration) ([]gateway.OutboxEntry, error) {
	const query = `
        UPDATE outbox SET available_at = now() + $2::float8 * interval '1 second'
        WHERE id IN (
            SELECT id FROM outbox
            WHERE completed_at IS NULL AND dead_at IS NULL AND available_at <= now()
            ORDER BY created_at
            LIMIT $1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id::text, kind, payload, attempts, last_error, created_at`
	if limit <= 0 {
		limit = 100
	}
	entries := []gateway.OutboxEntry{}
	err := s.g.run(ctx, gateway.OpOutboxClaim, func(db querier) ([]changefeed.Signal, error) {
		rows, err := db.Query(ctx, query, limit, lease.Seconds())
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var e gateway.OutboxEntry
			if err := rows.Scan(&e.ID, &e.Kind, &e.Payload, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
		return nil, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s outboxStore) Complete(ctx context.Context, id string) error {
	const query = `UPDATE outbox SET completed_at = now() WHERE id = $1`
	return s.g.run(ctx, gateway.OpOutboxComplete, func(db querier) ([]changefeed.Signal, error) {
		cmd, err := db.Exec(ctx, query, id)
		if err != nil {
			return nil, err
		}
		if cmd.RowsAffected() == 0 {
			return nil, pgx.ErrNoRows
		}
		return nil, nil
	})
}

func (s outboxStore) Fail(ctx context.Context, id, reason string, retryAt time.Time) error {
	const query = `
        UPDATE outbox SET attempts = attempts + 1, last_error = $2,
            available_at = COALESCE($3, available_at),
            dead_at = CASE WHEN $3::timestamptz IS NULL THEN now() ELSE NULL END
        WHERE id = $1`
	var next *time.Time
	if !retryAt.IsZero() {
		next = &retryAt
	}
	return s.g.run(ctx, gateway.OpOutboxFail, func(db querier) ([]changefeed.Signal, error) {
		cmd, err := db.Exec(ctx, query, id, reason, next)
		if err != nil {
			return nil, err
		}
		if cmd.RowsAffected() == 0 {
			return nil, pgx.ErrNoRows
		}
		return nil, nil
	})
}
