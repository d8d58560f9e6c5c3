package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/gateway/memory"
	"github.com/supportsphere/helpdesk/internal/identity"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

func strPtr(s string) *string { return &s }

func TestListFiltersNewestFirst(t *testing.T) {
	ctx := context.Background()
	gw := memory.New()
	for _, in := range []gateway.AuditInsert{
		{ActorID: strPtr("u-1"), TicketID: strPtr("t-1"), ActionType: domain.AuditTicketCreated},
		{ActorID: strPtr("a-1"), TicketID: strPtr("t-1"), ActionType: domain.AuditStatusChanged},
		{ActorID: strPtr("u-2"), TicketID: strPtr("t-2"), ActionType: domain.AuditTicketCreated},
	} {
		require.NoError(t, gw.AuditLogs().Insert(ctx, in))
	}
	log := New(identity.Authenticated(domain.Actor{ID: "root", Role: domain.RoleAdmin}), gw)

	all, err := log.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t-2", *all[0].TicketID)

	forTicket, err := log.List(ctx, Query{TicketID: "t-1"})
	require.NoError(t, err)
	require.Len(t, forTicket, 2)
	assert.Equal(t, domain.AuditStatusChanged, forTicket[0].ActionType)

	created, err := log.List(ctx, Query{ActionType: domain.AuditTicketCreated, Limit: 1})
	require.NoError(t, err)
	require.Len(t, created, 1)

	_, err = log.List(ctx, Query{ActionType: "deleted"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestListIsAdminOnly(t *testing.T) {
	gw := memory.New()

	_, err := New(identity.Anonymous(), gw).List(context.Background(), Query{})
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)

	agent := identity.Authenticated(domain.Actor{ID: "a-1", Role: domain.RoleAgent})
	_, err = New(agent, gw).List(context.Background(), Query{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}
