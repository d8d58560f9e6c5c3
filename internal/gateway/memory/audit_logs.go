package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

type auditStore struct{ g *Gateway }

func (s auditStore) Insert(ctx context.Context, in gateway.AuditInsert) error {
	return s.g.run(ctx, gateway.OpAuditInsert, func(d *dataset) ([]changefeed.Signal, error) {
		details := make(map[string]any, len(in.Details))
		for k, v := range in.Details {
			details[k] = v
		}
		d.audit = append(d.audit, domain.AuditLogEntry{
			ID:         uuid.NewString(),
			ActorID:    in.ActorID,
			TicketID:   in.TicketID,
			ActionType: in.ActionType,
			Details:    details,
			CreatedAt:  s.g.stamp(),
		})
		return nil, nil
	})
}

// List returns matching entries newest first.
func (s auditStore) List(ctx context.Context, q gateway.AuditQuery) ([]domain.AuditLogEntry, error) {
	out := []domain.AuditLogEntry{}
	err := s.g.run(ctx, gateway.OpAuditList, func(d *dataset) ([]changefeed.Signal, error) {
		for i := len(d.audit) - 1; i >= 0; i-- {
			entry := d.audit[i]
			if !matchesRef(q.TicketID, entry.TicketID) {
				continue
			}
			if q.ActionType != nil && entry.ActionType != *q.ActionType {
				continue
			}
			out = append(out, entry)
			if q.Limit > 0 && len(out) == q.Limit {
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
