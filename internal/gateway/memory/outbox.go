package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

type outboxStore struct{ g *Gateway }

func (s outboxStore) Enqueue(ctx context.Context, kind string, payload []byte) error {
	return s.g.run(ctx, gateway.OpOutboxEnqueue, func(d *dataset) ([]changefeed.Signal, error) {
		d.outbox = append(d.outbox, outboxRow{
			entry: gateway.OutboxEntry{
				ID:        uuid.NewString(),
				Kind:      kind,
				Payload:   append([]byte(nil), payload...),
				CreatedAt: s.g.stamp(),
			},
			availableAt: s.g.db.now().UTC(),
		})
		return nil, nil
	})
}

func (s outboxStore) Claim(ctx context.Context, limit int, lease time.Duration) ([]gateway.OutboxEntry, error) {
	out := []gateway.OutboxEntry{}
	err := s.g.run(ctx, gateway.OpOutboxClaim, func(d *dataset) ([]changefeed.Signal, error) {
		now := s.g.db.now().UTC()
		for i := range d.outbox {
			row := &d.outbox[i]
			if row.completed || row.dead || row.availableAt.After(now) {
				continue
			}
			row.availableAt = now.Add(lease)
			out = append(out, row.entry)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s outboxStore) Complete(ctx context.Context, id string) error {
	return s.g.run(ctx, gateway.OpOutboxComplete, func(d *dataset) ([]changefeed.Signal, error) {
		row := d.findOutbox(id)
		if row == nil {
			return nil, gateway.ErrNotFound
		}
		row.completed = true
		return nil, nil
	})
}

func (s outboxStore) Fail(ctx context.Context, id, reason string, retryAt time.Time) error {
	return s.g.run(ctx, gateway.OpOutboxFail, func(d *dataset) ([]changefeed.Signal, error) {
		row := d.findOutbox(id)
		if row == nil {
			return nil, gateway.ErrNotFound
		}
		row.entry.Attempts++
		msg := reason
		row.entry.LastError = &msg
		if retryAt.IsZero() {
			row.dead = true
		} else {
			row.availableAt = retryAt
		}
		return nil, nil
	})
}

func (d *dataset) findOutbox(id string) *outboxRow {
	for i := range d.outbox {
		if d.outbox[i].entry.ID == id {
			return &d.outbox[i]
		}
	}
	return nil
}

// Pending reports outbox entries that are neither completed nor dead.
func (g *Gateway) Pending() []gateway.OutboxEntry {
	g.db.mu.Lock()
	defer g.db.mu.Unlock()
	out := []gateway.OutboxEntry{}
	for _, row := range g.db.data.outbox {
		if !row.completed && !row.dead {
			out = append(out, row.entry)
		}
	}
	return out
}
