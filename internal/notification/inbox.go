// Package notification is the acting user's notification inbox.
package notification

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/identity"
	"github.com/supportsphere/helpdesk/internal/observability"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

// FetchError is the message stored when a refresh fails.
const FetchError = "Failed to fetch notifications"

// DefaultLimit caps the inbox listing.
const DefaultLimit = 50

// Snapshot is a copy of the inbox state.
type Snapshot struct {
	Notifications []domain.Notification
	Unread        int
	Loading       bool
	Error         string
}

// Deps are the collaborators an inbox needs.
type Deps struct {
	Gateway gateway.Gateway
	Feed    changefeed.Feed
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Inbox lists and updates the acting user's notifications.
type Inbox struct {
	session identity.Session
	gw      gateway.Gateway
	feed    changefeed.Feed
	logger  *zap.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	items   []domain.Notification
	unread  int
	loading bool
	errMsg  string
	closed  bool
	watches changefeed.Watches
}

// NewInbox builds an inbox acting as session.
func NewInbox(session identity.Session, deps Deps) *Inbox {
	if session == nil {
		session = identity.Anonymous()
	}
	return &Inbox{
		session: session,
		gw:      deps.Gateway,
		feed:    deps.Feed,
		logger:  observability.OrNop(deps.Logger).With(zap.String("repository", "notifications")),
		metrics: deps.Metrics,
		items:   []domain.Notification{},
	}
}

// List returns the actor's notifications newest first.
func (i *Inbox) List(ctx context.Context, unreadOnly bool) ([]domain.Notification, error) {
	actor, ok := i.session.Actor()
	if !ok {
		return nil, apperrors.NewAuthRequired()
	}
	items, err := i.gw.Notifications().ListForUser(ctx, actor.ID, gateway.NotificationQuery{
		UnreadOnly: unreadOnly,
		Limit:      DefaultLimit,
	})
	if err != nil {
		return nil, apperrors.NewPersistenceError("list notifications", err)
	}
	return items, nil
}

// UnreadCount returns the number of unread notifications.
func (i *Inbox) UnreadCount(ctx context.Context) (int, error) {
	actor, ok := i.session.Actor()
	if !ok {
		return 0, apperrors.NewAuthRequired()
	}
	n, err := i.gw.Notifications().CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, apperrors.NewPersistenceError("count notifications", err)
	}
	return n, nil
}

// Refresh reloads the list and the unread count.
func (i *Inbox) Refresh(ctx context.Context) {
	actor, ok := i.session.Actor()
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	if !ok {
		i.items, i.unread, i.loading, i.errMsg = []domain.Notification{}, 0, false, ""
		i.mu.Unlock()
		return
	}
	i.loading = true
	i.mu.Unlock()

	items, err := i.gw.Notifications().ListForUser(ctx, actor.ID, gateway.NotificationQuery{Limit: DefaultLimit})
	var unread int
	if err == nil {
		unread, err = i.gw.Notifications().CountUnread(ctx, actor.ID)
	}
	i.metrics.RecordRefresh("notifications", err)

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.loading = false
	if err != nil {
		i.logger.Error("refresh notifications", zap.String("actor_id", actor.ID), zap.Error(err))
		i.errMsg = FetchError
		return
	}
	i.items, i.unread, i.errMsg = items, unread, ""
}

// Snapshot returns a copy of the inbox state.
func (i *Inbox) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return Snapshot{
		Notifications: append([]domain.Notification{}, i.items...),
		Unread:        i.unread,
		Loading:       i.loading,
		Error:         i.errMsg,
	}
}

// MarkRead marks one of the actor's notifications read.
func (i *Inbox) MarkRead(ctx context.Context, id string) error {
	actor, err := i.actorFor(id)
	if err != nil {
		return err
	}
	if err := i.gw.Notifications().MarkRead(ctx, actor.ID, id); err != nil {
		return i.writeError("mark notification read", id, err)
	}
	i.Refresh(ctx)
	return nil
}

// MarkAllRead marks every unread notification read and returns how many
// changed.
func (i *Inbox) MarkAllRead(ctx context.Context) (int, error) {
	actor, ok := i.session.Actor()
	if !ok {
		return 0, apperrors.NewAuthRequired()
	}
	n, err := i.gw.Notifications().MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, apperrors.NewPersistenceError("mark all notifications read", err)
	}
	i.Refresh(ctx)
	return n, nil
}

// Delete removes one of the actor's notifications.
func (i *Inbox) Delete(ctx context.Context, id string) error {
	actor, err := i.actorFor(id)
	if err != nil {
		return err
	}
	if err := i.gw.Notifications().Delete(ctx, actor.ID, id); err != nil {
		return i.writeError("delete notification", id, err)
	}
	i.Refresh(ctx)
	return nil
}

// Watch refreshes whenever one of the actor's notifications changes.
func (i *Inbox) Watch(ctx context.Context) (func(), error) {
	actor, ok := i.session.Actor()
	if !ok {
		return nil, apperrors.NewAuthRequired()
	}
	topic := changefeed.Topic{Table: changefeed.TableNotifications, UserID: actor.ID}
	return i.watches.Start(ctx, i.feed, topic, i.Refresh)
}

// Close stops every watch and discards refresh results that land later.
func (i *Inbox) Close() {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()
	i.watches.Close()
}

func (i *Inbox) actorFor(id string) (domain.Actor, error) {
	actor, ok := i.session.Actor()
	if !ok {
		return domain.Actor{}, apperrors.NewAuthRequired()
	}
	if strings.TrimSpace(id) == "" {
		return domain.Actor{}, apperrors.NewValidationError("notification id is required", nil)
	}
	return actor, nil
}

func (i *Inbox) writeError(op, id string, err error) error {
	if gateway.IsNotFound(err) {
		return apperrors.NewNotFound("notification", map[string]any{"id": id})
	}
	return apperrors.NewPersistenceError(op, err)
}
