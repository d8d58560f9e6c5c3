package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

func strPtr(s string) *string { return &s }

func seedTicket(t *testing.T, g *Gateway, title, description string, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := g.Tickets().Insert(context.Background(), gateway.TicketInsert{
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   "user-1",
	})
	require.NoError(t, err)
	return ticket
}

func TestTicketInsertAssignsSequentialNumbers(t *testing.T) {
	g := New()
	first := seedTicket(t, g, "a", "a", domain.TicketPriorityLow)
	second := seedTicket(t, g, "b", "b", domain.TicketPriorityLow)

	assert.Equal(t, int64(1), first.TicketNumber)
	assert.Equal(t, int64(2), second.TicketNumber)
	assert.True(t, second.CreatedAt.After(first.CreatedAt))
	assert.Equal(t, "SS-2", second.DisplayKey())
}

func TestTicketSelectFilters(t *testing.T) {
	ctx := context.Background()
	g := New()
	printer := seedTicket(t, g, "Printer down", "Third floor printer jammed", domain.TicketPriorityHigh)
	vpn := seedTicket(t, g, "VPN", "Cannot reach the PRINTER share", domain.TicketPriorityLow)
	seedTicket(t, g, "Laptop", "Battery swollen", domain.TicketPriorityUrgent)

	_, err := g.Tickets().Update(ctx, vpn.ID, domain.TicketPatch{
		AssignedAgent: domain.Set("agent-1"),
		Status:        domain.Set(domain.TicketStatusAssigned),
	})
	require.NoError(t, err)

	cases := []struct {
		name  string
		query gateway.TicketQuery
		want  []string
	}{
		{"all newest first", gateway.TicketQuery{}, []string{"Laptop", "VPN", "Printer down"}},
		{"search matches title and description", gateway.TicketQuery{Search: "printer"}, []string{"VPN", "Printer down"}},
		{"status set", gateway.TicketQuery{Statuses: []domain.TicketStatus{domain.TicketStatusAssigned}}, []string{"VPN"}},
		{"priority set", gateway.TicketQuery{Priorities: []domain.TicketPriority{domain.TicketPriorityHigh, domain.TicketPriorityUrgent}}, []string{"Laptop", "Printer down"}},
		{"agent", gateway.TicketQuery{AssignedAgent: strPtr("agent-1")}, []string{"VPN"}},
		{"conjunction", gateway.TicketQuery{Search: "printer", Priorities: []domain.TicketPriority{domain.TicketPriorityHigh}}, []string{"Printer down"}},
		{"limit", gateway.TicketQuery{Limit: 1}, []string{"Laptop"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tickets, err := g.Tickets().Select(ctx, tc.query)
			require.NoError(t, err)
			titles := make([]string, 0, len(tickets))
			for _, ticket := range tickets {
				titles = append(titles, ticket.Title)
			}
			assert.Equal(t, tc.want, titles)
		})
	}

	got, err := g.Tickets().Get(ctx, printer.ID)
	require.NoError(t, err)
	assert.Equal(t, printer.ID, got.ID)
}

func TestTicketProjections(t *testing.T) {
	ctx := context.Background()
	g := New()
	_, err := g.Directory().InsertProfile(ctx, domain.Profile{UserID: "user-1", Name: "Jane", Email: "jane@example.com"})
	require.NoError(t, err)
	_, err = g.Directory().InsertProfile(ctx, domain.Profile{UserID: "agent-1", Name: "Sam", Email: "sam@example.com", Role: domain.RoleAgent})
	require.NoError(t, err)
	team, err := g.Directory().InsertTeam(ctx, domain.Team{Name: "Hardware"})
	require.NoError(t, err)

	ticket := seedTicket(t, g, "Printer down", "jammed", domain.TicketPriorityHigh)
	updated, err := g.Tickets().Update(ctx, ticket.ID, domain.TicketPatch{
		AssignedAgent: domain.Set("agent-1"),
		AssignedTeam:  domain.Set(team.ID),
	})
	require.NoError(t, err)

	require.NotNil(t, updated.Creator)
	assert.Equal(t, "Jane", updated.Creator.Name)
	require.NotNil(t, updated.Agent)
	assert.Equal(t, "sam@example.com", updated.Agent.Email)
	require.NotNil(t, updated.Team)
	assert.Equal(t, "Hardware", updated.Team.Name)
	assert.Nil(t, updated.Category)
}

func TestTicketUpdateMissing(t *testing.T) {
	g := New()
	_, err := g.Tickets().Update(context.Background(), "nope", domain.TicketPatch{Title: domain.Set("x")})
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestMessagesOrderedAndScoped(t *testing.T) {
	ctx := context.Background()
	g := New()
	ticket := seedTicket(t, g, "a", "a", domain.TicketPriorityLow)

	for _, in := range []gateway.MessageInsert{
		{TicketID: ticket.ID, SenderID: "user-1", Message: "first"},
		{TicketID: ticket.ID, SenderID: "agent-1", Message: "note", IsInternal: true},
		{TicketID: ticket.ID, SenderID: "agent-1", Message: "second"},
	} {
		_, err := g.Messages().Insert(ctx, in)
		require.NoError(t, err)
	}

	all, err := g.Messages().Select(ctx, gateway.MessageQuery{TicketID: ticket.ID, IncludeInternal: true})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
	}

	public, err := g.Messages().Select(ctx, gateway.MessageQuery{TicketID: ticket.ID})
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, "first", public[0].Message)
	assert.Equal(t, "second", public[1].Message)

	_, err = g.Messages().Insert(ctx, gateway.MessageInsert{TicketID: "missing", SenderID: "x", Message: "y"})
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestInTxRollsBackAndDefersSignals(t *testing.T) {
	ctx := context.Background()
	hub := changefeed.NewHub(nil)
	sub, err := hub.Subscribe(ctx, changefeed.Topic{Table: changefeed.TableTickets})
	require.NoError(t, err)
	defer sub.Close()

	g := New(WithPublisher(hub))
	boom := errors.New("boom")

	err = g.InTx(ctx, func(tx gateway.Gateway) error {
		_, err := tx.Tickets().Insert(ctx, gateway.TicketInsert{Title: "a", Description: "a", CreatedBy: "u"})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	tickets, err := g.Tickets().Select(ctx, gateway.TicketQuery{})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	select {
	case <-sub.C:
		t.Fatal("signal emitted for rolled back write")
	default:
	}

	err = g.InTx(ctx, func(tx gateway.Gateway) error {
		if _, err := tx.Tickets().Insert(ctx, gateway.TicketInsert{Title: "b", Description: "b", CreatedBy: "u"}); err != nil {
			return err
		}
		return tx.Outbox().Enqueue(ctx, "audit_log", []byte(`{}`))
	})
	require.NoError(t, err)
	select {
	case <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("expected signal after commit")
	}
	assert.Len(t, g.Pending(), 1)
}

func TestFailOn(t *testing.T) {
	ctx := context.Background()
	g := New()
	boom := errors.New("offline")
	g.FailOn(gateway.OpTicketsSelect, boom)

	_, err := g.Tickets().Select(ctx, gateway.TicketQuery{})
	assert.ErrorIs(t, err, boom)

	g.FailOn(gateway.OpTicketsSelect, nil)
	_, err = g.Tickets().Select(ctx, gateway.TicketQuery{})
	assert.NoError(t, err)
}

func TestNotificationsInbox(t *testing.T) {
	ctx := context.Background()
	g := New()
	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, g.Notifications().Insert(ctx, gateway.NotificationInsert{UserID: "u1", Title: title, Body: title}))
	}
	require.NoError(t, g.Notifications().Insert(ctx, gateway.NotificationInsert{UserID: "u2", Title: "other", Body: "other"}))

	inbox, err := g.Notifications().ListForUser(ctx, "u1", gateway.NotificationQuery{})
	require.NoError(t, err)
	require.Len(t, inbox, 3)
	assert.Equal(t, "three", inbox[0].Title)
	assert.Equal(t, domain.NotificationSystem, inbox[0].Type)

	require.NoError(t, g.Notifications().MarkRead(ctx, "u1", inbox[0].ID))
	assert.ErrorIs(t, g.Notifications().MarkRead(ctx, "u2", inbox[1].ID), gateway.ErrNotFound)

	unread, err := g.Notifications().CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	n, err := g.Notifications().MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, g.Notifications().Delete(ctx, "u1", inbox[2].ID))
	inbox, err = g.Notifications().ListForUser(ctx, "u1", gateway.NotificationQuery{})
	require.NoError(t, err)
	assert.Len(t, inbox, 2)
}

func TestOutboxClaimLeaseAndFail(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g := New(WithClock(func() time.Time { return now }))

	require.NoError(t, g.Outbox().Enqueue(ctx, "notification", []byte(`{"a":1}`)))
	require.NoError(t, g.Outbox().Enqueue(ctx, "notification", []byte(`{"a":2}`)))

	claimed, err := g.Outbox().Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	again, err := g.Outbox().Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, g.Outbox().Complete(ctx, claimed[0].ID))
	require.NoError(t, g.Outbox().Fail(ctx, claimed[1].ID, "smtp down", now.Add(30*time.Second)))

	now = now.Add(45 * time.Second)
	retry, err := g.Outbox().Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, 1, retry[0].Attempts)
	require.NotNil(t, retry[0].LastError)
	assert.Equal(t, "smtp down", *retry[0].LastError)

	require.NoError(t, g.Outbox().Fail(ctx, retry[0].ID, "still down", time.Time{}))
	assert.Empty(t, g.Pending())
}

func TestDirectoryLookups(t *testing.T) {
	ctx := context.Background()
	g := New()
	for _, p := range []domain.Profile{
		{UserID: "u1", Name: "Zed", Email: "zed@example.com", Role: domain.RoleUser},
		{UserID: "a1", Name: "Amy", Email: "amy@example.com", Role: domain.RoleAgent},
		{UserID: "a2", Name: "Bob", Email: "bob@example.com", Role: domain.RoleAdmin},
	} {
		_, err := g.Directory().InsertProfile(ctx, p)
		require.NoError(t, err)
	}

	staff, err := g.Directory().ListProfiles(ctx, domain.RoleAgent, domain.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, "Amy", staff[0].Name)

	p, err := g.Directory().ProfileByEmail(ctx, "ZED@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)

	_, err = g.Directory().InsertProfile(ctx, domain.Profile{UserID: "u9", Name: "Dup", Email: "zed@example.com"})
	assert.ErrorIs(t, err, gateway.ErrConflict)
}

func TestDeleteTeamUnlinksTicketsAndSignals(t *testing.T) {
	ctx := context.Background()
	hub := changefeed.NewHub(nil)
	g := New(WithPublisher(hub))

	_, err := g.Directory().InsertProfile(ctx, domain.Profile{UserID: "agent-1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleAgent})
	require.NoError(t, err)
	team, err := g.Directory().InsertTeam(ctx, domain.Team{Name: "Network"})
	require.NoError(t, err)
	member, err := g.Directory().AddTeamMember(ctx, team.ID, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, &domain.PersonRef{Name: "Ada", Email: "ada@example.com"}, member.Agent)

	ticket, err := g.Tickets().Insert(ctx, gateway.TicketInsert{Title: "VPN", Description: "down", CreatedBy: "user-1", AssignedTeam: strPtr(team.ID)})
	require.NoError(t, err)

	sub, err := hub.Subscribe(ctx, changefeed.Topic{Table: changefeed.TableTickets, TicketID: ticket.ID})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, g.Directory().DeleteTeam(ctx, team.ID))
	select {
	case <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("expected signal for unlinked ticket")
	}

	got, err := g.Tickets().Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AssignedTeam)
	assert.Nil(t, got.Team)

	members, err := g.Directory().ListTeamMembers(ctx, team.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
	assert.ErrorIs(t, g.Directory().DeleteTeam(ctx, team.ID), gateway.ErrNotFound)
}
