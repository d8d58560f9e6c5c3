// Package audit exposes the audit trail to administrators.
package audit

import (
	"context"

	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/identity"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Query filters the listing. Zero values match everything.
type Query struct {
	TicketID   string
	ActionType domain.AuditAction
	Limit      int
}

// Log reads audit entries as the acting user.
type Log struct {
	session identity.Session
	gw      gateway.Gateway
}

// New builds an audit log reader.
func New(session identity.Session, gw gateway.Gateway) *Log {
	if session == nil {
		session = identity.Anonymous()
	}
	return &Log{session: session, gw: gw}
}

// List returns matching entries newest first. Admins only.
func (l *Log) List(ctx context.Context, q Query) ([]domain.AuditLogEntry, error) {
	actor, ok := l.session.Actor()
	if !ok {
		return nil, apperrors.NewAuthRequired()
	}
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}

	query := gateway.AuditQuery{Limit: q.Limit}
	switch {
	case query.Limit <= 0:
		query.Limit = DefaultLimit
	case query.Limit > MaxLimit:
		query.Limit = MaxLimit
	}
	if q.TicketID != "" {
		id := q.TicketID
		query.TicketID = &id
	}
	if q.ActionType != "" {
		if !q.ActionType.Valid() {
			return nil, apperrors.NewValidationError("invalid action type", map[string]any{"action_type": string(q.ActionType)})
		}
		action := q.ActionType
		query.ActionType = &action
	}

	entries, err := l.gw.AuditLogs().List(ctx, query)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list audit logs", err)
	}
	return entries, nil
}
