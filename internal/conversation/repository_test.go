package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/fanout"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/gateway/memory"
	"github.com/supportsphere/helpdesk/internal/identity"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

var (
	requester = domain.Actor{ID: "user-1", Role: domain.RoleUser}
	stranger  = domain.Actor{ID: "user-2", Role: domain.RoleUser}
	agent     = domain.Actor{ID: "agent-1", Role: domain.RoleAgent}
)

type fixture struct {
	gw     *memory.Gateway
	hub    *changefeed.Hub
	ticket *domain.Ticket
}

func newFixture(t *testing.T, assigned bool) *fixture {
	t.Helper()
	ctx := context.Background()
	hub := changefeed.NewHub(nil)
	gw := memory.New(memory.WithPublisher(hub))

	_, err := gw.Directory().InsertProfile(ctx, domain.Profile{UserID: agent.ID, Name: "Ada", Email: "ada@example.com", Role: domain.RoleAgent})
	require.NoError(t, err)

	ticket, err := gw.Tickets().Insert(ctx, gateway.TicketInsert{
		Title:       "Printer down",
		Description: "offline",
		CreatedBy:   requester.ID,
	})
	require.NoError(t, err)
	if assigned {
		agentID := agent.ID
		ticket, err = gw.Tickets().Update(ctx, ticket.ID, domain.TicketPatch{
			AssignedAgent: domain.SetPtr(&agentID),
			Status:        domain.Set(domain.TicketStatusAssigned),
		})
		require.NoError(t, err)
	}
	return &fixture{gw: gw, hub: hub, ticket: ticket}
}

func (f *fixture) repo(actor *domain.Actor) *Repository {
	session := identity.Anonymous()
	if actor != nil {
		session = identity.Authenticated(*actor)
	}
	return NewRepository(session, f.ticket.ID, Deps{
		Gateway:  f.gw,
		Feed:     f.hub,
		Recorder: fanout.NewDirect(f.gw, nil, nil),
	})
}

func inbox(t *testing.T, gw gateway.Gateway, userID string) []domain.Notification {
	t.Helper()
	out, err := gw.Notifications().ListForUser(context.Background(), userID, gateway.NotificationQuery{})
	require.NoError(t, err)
	return out
}

func TestSendMessageFromAgentNotifiesCreator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	msg, err := f.repo(&agent).SendMessage(ctx, "  Have you tried turning it off and on?  ", false)
	require.NoError(t, err)
	assert.Equal(t, "Have you tried turning it off and on?", msg.Message)
	require.NotNil(t, msg.SenderID)
	assert.Equal(t, agent.ID, *msg.SenderID)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "Ada", msg.Sender.Name)

	notes := inbox(t, f.gw, requester.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, "New Message", notes[0].Title)
	assert.Equal(t, "New reply on ticket #1", notes[0].Body)
	assert.Equal(t, domain.NotificationTicketMessage, notes[0].Type)

	action := domain.AuditMessageSent
	entries, err := f.gw.AuditLogs().List(ctx, gateway.AuditQuery{TicketID: &f.ticket.ID, ActionType: &action})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Have you tried turning it off and on?", entries[0].Details["message_preview"])
}

func TestSendMessageFromCreatorNotifiesAgent(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.repo(&requester).SendMessage(context.Background(), "still broken", false)
	require.NoError(t, err)
	assert.Len(t, inbox(t, f.gw, agent.ID), 1)
	assert.Empty(t, inbox(t, f.gw, requester.ID))
}

func TestSendMessageFromCreatorWithoutAgentNotifiesNobody(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.repo(&requester).SendMessage(context.Background(), "anyone there?", false)
	require.NoError(t, err)
	assert.Empty(t, inbox(t, f.gw, requester.ID))
	assert.Empty(t, inbox(t, f.gw, agent.ID))
}

func TestInternalNoteNeverNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	_, err := f.repo(&agent).SendMessage(ctx, "user seems confused", true)
	require.NoError(t, err)
	assert.Empty(t, inbox(t, f.gw, requester.ID))

	action := domain.AuditInternalNoteAdded
	entries, err := f.gw.AuditLogs().List(ctx, gateway.AuditQuery{TicketID: &f.ticket.ID, ActionType: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = f.repo(&requester).SendMessage(ctx, "sneaky", true)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestInternalNotesHiddenFromRequester(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	staff := f.repo(&agent)

	_, err := staff.SendMessage(ctx, "public reply", false)
	require.NoError(t, err)
	_, err = staff.SendMessage(ctx, "private note", true)
	require.NoError(t, err)

	assert.Len(t, staff.ListMessages(ctx), 2)

	visible := f.repo(&requester).ListMessages(ctx)
	require.Len(t, visible, 1)
	assert.Equal(t, "public reply", visible[0].Message)
}

func TestMessagesOldestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	repo := f.repo(&agent)

	for _, text := range []string{"first", "second", "third"} {
		_, err := repo.SendMessage(ctx, text, false)
		require.NoError(t, err)
	}

	msgs := repo.Snapshot().Messages
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
	}
	assert.Equal(t, "first", msgs[0].Message)
	assert.Equal(t, "third", msgs[2].Message)
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	_, err := f.repo(nil).SendMessage(ctx, "hello", false)
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)

	_, err = f.repo(&agent).SendMessage(ctx, "   ", false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.repo(&stranger).SendMessage(ctx, "hi", false)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	missing := NewRepository(identity.Authenticated(agent), "missing", Deps{Gateway: f.gw, Feed: f.hub})
	_, err = missing.SendMessage(ctx, "hi", false)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	f.gw.FailOn(gateway.OpMessagesInsert, errors.New("disk full"))
	_, err = f.repo(&agent).SendMessage(ctx, "hi", false)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}

func TestGetTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	got := f.repo(&requester).GetTicket(ctx)
	require.NotNil(t, got)
	assert.Equal(t, f.ticket.ID, got.ID)
	require.NotNil(t, got.Agent)
	assert.Equal(t, "Ada", got.Agent.Name)

	assert.Nil(t, f.repo(&stranger).GetTicket(ctx))
	assert.Nil(t, f.repo(nil).GetTicket(ctx))
	assert.Empty(t, f.repo(nil).ListMessages(ctx))

	missing := NewRepository(identity.Authenticated(agent), "missing", Deps{Gateway: f.gw, Feed: f.hub})
	assert.Nil(t, missing.GetTicket(ctx))
	assert.NotNil(t, missing.ListMessages(ctx))
}

func TestRefreshStoresReadFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	repo := f.repo(&agent)
	_, err := repo.SendMessage(ctx, "hello", false)
	require.NoError(t, err)

	repo.Refresh(ctx)
	snap := repo.Snapshot()
	require.NotNil(t, snap.Ticket)
	require.Len(t, snap.Messages, 1)
	assert.Empty(t, snap.Error)

	f.gw.FailOn(gateway.OpMessagesSelect, errors.New("timeout"))
	repo.Refresh(ctx)
	snap = repo.Snapshot()
	assert.Equal(t, MessagesFetchError, snap.Error)
	assert.Len(t, snap.Messages, 1)
	assert.NotNil(t, snap.Ticket)

	f.gw.FailOn(gateway.OpMessagesSelect, nil)
	f.gw.FailOn(gateway.OpTicketsGet, errors.New("timeout"))
	assert.Nil(t, repo.GetTicket(ctx))
	assert.Equal(t, TicketFetchError, repo.Snapshot().Error)
	repo.Refresh(ctx)
	assert.Equal(t, TicketFetchError, repo.Snapshot().Error)
}

func TestDirectReadsStoreFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	repo := f.repo(&agent)

	f.gw.FailOn(gateway.OpMessagesSelect, errors.New("timeout"))
	assert.Empty(t, repo.ListMessages(ctx))
	assert.Equal(t, MessagesFetchError, repo.Snapshot().Error)

	f.gw.FailOn(gateway.OpMessagesSelect, nil)
	repo.Refresh(ctx)
	assert.Empty(t, repo.Snapshot().Error)

	repo.Close()
	f.gw.FailOn(gateway.OpTicketsGet, errors.New("timeout"))
	assert.Nil(t, repo.GetTicket(ctx))
	assert.Empty(t, repo.Snapshot().Error)
}

func TestWatchFollowsOnlyThisTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	repo := f.repo(&agent)

	stop, err := repo.Watch(ctx)
	require.NoError(t, err)
	defer stop()

	other, err := f.gw.Tickets().Insert(ctx, gateway.TicketInsert{Title: "other", Description: "x", CreatedBy: requester.ID})
	require.NoError(t, err)
	_, err = f.gw.Messages().Insert(ctx, gateway.MessageInsert{TicketID: other.ID, SenderID: requester.ID, Message: "elsewhere"})
	require.NoError(t, err)
	_, err = f.gw.Messages().Insert(ctx, gateway.MessageInsert{TicketID: f.ticket.ID, SenderID: requester.ID, Message: "here"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		msgs := repo.Snapshot().Messages
		return len(msgs) == 1 && msgs[0].Message == "here"
	}, time.Second, 5*time.Millisecond)

	repo.Close()
	assert.Equal(t, 0, f.hub.Subscribers())
	_, err = repo.Watch(ctx)
	assert.ErrorIs(t, err, changefeed.ErrClosed)
}
