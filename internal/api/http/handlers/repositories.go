package handlers

import (
	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/audit"
	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/conversation"
	"github.com/supportsphere/helpdesk/internal/directory"
	"github.com/supportsphere/helpdesk/internal/fanout"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/identity"
	"github.com/supportsphere/helpdesk/internal/notification"
	"github.com/supportsphere/helpdesk/internal/observability"
	"github.com/supportsphere/helpdesk/internal/ticket"
)

// Repositories builds request-scoped repositories bound to the caller's
// session.
type Repositories struct {
	Gateway  gateway.Gateway
	Feed     changefeed.Feed
	Recorder fanout.Recorder
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// Tickets returns a ticket repository for session.
func (r Repositories) Tickets(session identity.Session) *ticket.Repository {
	return ticket.NewRepository(session, ticket.Filter{}, ticket.Deps{
		Gateway:  r.Gateway,
		Feed:     r.Feed,
		Recorder: r.Recorder,
		Logger:   r.Logger,
		Metrics:  r.Metrics,
	})
}

// Conversation returns the thread repository of ticketID for session.
func (r Repositories) Conversation(session identity.Session, ticketID string) *conversation.Repository {
	return conversation.NewRepository(session, ticketID, conversation.Deps{
		Gateway:  r.Gateway,
		Feed:     r.Feed,
		Recorder: r.Recorder,
		Logger:   r.Logger,
		Metrics:  r.Metrics,
	})
}

// Inbox returns the notification inbox of session.
func (r Repositories) Inbox(session identity.Session) *notification.Inbox {
	return notification.NewInbox(session, notification.Deps{
		Gateway: r.Gateway,
		Feed:    r.Feed,
		Logger:  r.Logger,
		Metrics: r.Metrics,
	})
}

// Directory returns the directory as session.
func (r Repositories) Directory(session identity.Session) *directory.Directory {
	return directory.New(session, r.Gateway)
}

// Audit returns the audit log reader as session.
func (r Repositories) Audit(session identity.Session) *audit.Log {
	return audit.New(session, r.Gateway)
}
