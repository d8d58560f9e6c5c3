package postgres

import (
	"context"
	"fmt"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

type auditStore struct{ g *Gateway }

func (s auditStore) Insert(ctx context.Context, in gateway.AuditInsert) error {
	const query = `
        INSERT INTO audit_logs (actor_id, ticket_id, action_type, details)
        VALUES ($1,$2,$3,$4)`
	details := in.Details
	if details == nil {
		details = map[string]any{}
	}
	return s.g.run(ctx, gateway.OpAuditInsert, func(db querier) ([]changefeed.Signal, error) {
		_, err := db.Exec(ctx, query, in.ActorID, in.TicketID, string(in.ActionType), details)
		return nil, err
	})
}

func (s auditStore) List(ctx context.Context, q gateway.AuditQuery) ([]domain.AuditLogEntry, error) {
	query := `
        SELECT id::text, actor_id::text, ticket_id::text, action_type, details, created_at
        FROM audit_logs WHERE 1=1`
	args := []any{}
	if q.TicketID != nil {
		args = append(args, *q.TicketID)
		query += fmt.Sprintf(" AND ticket_id = $%d", len(args))
	}
	if q.ActionType != nil {
		args = append(args, string(*q.ActionType))
		query += fmt.Sprintf(" AND action_type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	entries := []domain.AuditLogEntry{}
	err := s.g.run(ctx, gateway.OpAuditList, func(db querier) ([]changefeed.Signal, error) {
		rows, err := db.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				entry  domain.AuditLogEntry
				action string
			)
			if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.TicketID, &action, &entry.Details, &entry.CreatedAt); err != nil {
				return nil, err
			}
			entry.ActionType = domain.AuditAction(action)
			entries = append(entries, entry)
		}
		return nil, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
