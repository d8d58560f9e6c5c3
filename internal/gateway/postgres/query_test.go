package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

func TestBuildTicketWhere(t *testing.T) {
	agent := "agent-1"
	cases := []struct {
		name     string
		query    gateway.TicketQuery
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "empty",
			query:    gateway.TicketQuery{},
			wantSQL:  " WHERE 1=1 ORDER BY t.created_at DESC, t.ticket_number DESC",
			wantArgs: []any{},
		},
		{
			name: "status set and agent",
			query: gateway.TicketQuery{
				Statuses:      []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusAssigned},
				AssignedAgent: &agent,
			},
			wantSQL:  " WHERE 1=1 AND t.status IN ($1,$2) AND t.assigned_agent = $3 ORDER BY t.created_at DESC, t.ticket_number DESC",
			wantArgs: []any{"open", "assigned", "agent-1"},
		},
		{
			name:     "search and limit",
			query:    gateway.TicketQuery{Search: " 50%_off ", Limit: 10},
			wantSQL:  " WHERE 1=1 AND (t.title ILIKE $1 OR t.description ILIKE $1) ORDER BY t.created_at DESC, t.ticket_number DESC LIMIT $2",
			wantArgs: []any{`%50\%\_off%`, 10},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sql, args := buildTicketWhere(tc.query)
			assert.Equal(t, tc.wantSQL, sql)
			assert.Equal(t, tc.wantArgs, args)
		})
	}
}

func TestBuildTicketUpdate(t *testing.T) {
	due := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	patch := domain.TicketPatch{
		Status:        domain.Set(domain.TicketStatusResolved),
		AssignedAgent: domain.Clear[string](),
		SLAResolveDue: domain.Set(due),
		SLABreached:   domain.Set(true),
	}
	sql, args := buildTicketUpdate("t-1", patch)

	assert.Equal(t,
		"UPDATE tickets SET status = $1, assigned_agent = $2, sla_resolve_due = $3, sla_breached = $4, updated_at = now() WHERE id = $5",
		sql)
	resolved := "resolved"
	assert.Equal(t, []any{&resolved, (*string)(nil), &due, true, "t-1"}, args)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(pgx.ErrNoRows), gateway.ErrNotFound)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: uniqueViolation}), gateway.ErrConflict)

	other := errors.New("connection reset")
	assert.Equal(t, other, translate(other))
}
