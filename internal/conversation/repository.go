// Package conversation is the per-ticket message thread: the ticket header,
// its messages and replies or internal notes posted by the acting user.
package conversation

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/fanout"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/identity"
	"github.com/supportsphere/helpdesk/internal/observability"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

// Messages stored when a read fails.
const (
	TicketFetchError   = "Failed to fetch ticket"
	MessagesFetchError = "Failed to fetch messages"
)

// Snapshot is a copy of the repository's local state.
type Snapshot struct {
	Ticket   *domain.Ticket
	Messages []domain.Message
	Loading  bool
	Error    string
}

// Deps are the collaborators a repository needs.
type Deps struct {
	Gateway  gateway.Gateway
	Feed     changefeed.Feed
	Recorder fanout.Recorder
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// Repository holds one session's view of one ticket's thread.
type Repository struct {
	session  identity.Session
	ticketID string
	gw       gateway.Gateway
	feed     changefeed.Feed
	recorder fanout.Recorder
	logger   *zap.Logger
	metrics  *observability.Metrics

	mu       sync.RWMutex
	ticket   *domain.Ticket
	messages []domain.Message
	loading  bool
	errMsg   string
	closed   bool
	watches  changefeed.Watches
}

// NewRepository builds a repository for ticketID acting as session.
func NewRepository(session identity.Session, ticketID string, deps Deps) *Repository {
	logger := observability.OrNop(deps.Logger)
	recorder := deps.Recorder
	if recorder == nil {
		recorder = fanout.NewDirect(deps.Gateway, logger, deps.Metrics)
	}
	if session == nil {
		session = identity.Anonymous()
	}
	return &Repository{
		session:  session,
		ticketID: ticketID,
		gw:       deps.Gateway,
		feed:     deps.Feed,
		recorder: recorder,
		logger:   logger.With(zap.String("repository", "conversation"), zap.String("ticket_id", ticketID)),
		metrics:  deps.Metrics,
		messages: []domain.Message{},
	}
}

// TicketID returns the ticket this thread belongs to.
func (r *Repository) TicketID() string {
	return r.ticketID
}

// GetTicket fetches the ticket with its joins. It returns nil when the ticket
// is missing, hidden from the actor or the read fails.
func (r *Repository) GetTicket(ctx context.Context) *domain.Ticket {
	t, err := r.fetchTicket(ctx)
	if err != nil {
		r.storeReadError(TicketFetchError)
	}
	return t
}

// ListMessages fetches the thread oldest first. Internal notes are included
// for staff only. The result is never nil.
func (r *Repository) ListMessages(ctx context.Context) []domain.Message {
	msgs, err := r.fetchMessages(ctx)
	if err != nil {
		r.storeReadError(MessagesFetchError)
	}
	return msgs
}

func (r *Repository) storeReadError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.errMsg = msg
	}
}

// Refresh refetches the ticket and its messages into local state.
func (r *Repository) Refresh(ctx context.Context) {
	if !r.begin() {
		return
	}
	t, ticketErr := r.fetchTicket(ctx)
	msgs, msgErr := r.fetchMessages(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.loading = false
	r.errMsg = ""
	if ticketErr == nil {
		r.ticket = t
	} else {
		r.errMsg = TicketFetchError
	}
	if msgErr == nil {
		r.messages = msgs
	} else if r.errMsg == "" {
		r.errMsg = MessagesFetchError
	}
}

// RefreshMessages refetches the messages only.
func (r *Repository) RefreshMessages(ctx context.Context) {
	if !r.begin() {
		return
	}
	msgs, err := r.fetchMessages(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.loading = false
	if err != nil {
		r.errMsg = MessagesFetchError
		return
	}
	r.messages = msgs
	if r.errMsg == MessagesFetchError {
		r.errMsg = ""
	}
}

func (r *Repository) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.loading = true
	return true
}

// Snapshot returns a copy of the local state.
func (r *Repository) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{
		Messages: append([]domain.Message{}, r.messages...),
		Loading:  r.loading,
		Error:    r.errMsg,
	}
	if r.ticket != nil {
		t := *r.ticket
		snap.Ticket = &t
	}
	return snap
}

// SendMessage posts a reply, or an internal note when internal is set, as
// the acting user.
func (r *Repository) SendMessage(ctx context.Context, text string, internal bool) (*domain.Message, error) {
	actor, ok := r.session.Actor()
	if !ok {
		return nil, apperrors.NewAuthRequired()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("message is required", map[string]any{"message": "required"})
	}
	if internal && !actor.CanSeeInternal() {
		return nil, apperrors.NewForbidden("only staff can add internal notes")
	}

	var sent *domain.Message
	err := r.recorder.Commit(ctx, func(gw gateway.Gateway) ([]fanout.Effect, error) {
		t, err := gw.Tickets().Get(ctx, r.ticketID)
		if err != nil {
			if gateway.IsNotFound(err) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"id": r.ticketID})
			}
			return nil, err
		}
		if !actor.CanView(t) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": r.ticketID})
		}
		m, err := gw.Messages().Insert(ctx, gateway.MessageInsert{
			TicketID:   r.ticketID,
			SenderID:   actor.ID,
			Message:    text,
			IsInternal: internal,
		})
		if err != nil {
			return nil, err
		}
		sent = m
		return fanout.MessageSent(actor.ID, t, text, internal), nil
	})
	if err != nil {
		return nil, apperrors.WrapPersistence("send message", err)
	}

	r.RefreshMessages(ctx)
	return sent, nil
}

// Watch refetches the messages whenever this ticket's thread changes.
func (r *Repository) Watch(ctx context.Context) (func(), error) {
	topic := changefeed.Topic{Table: changefeed.TableMessages, TicketID: r.ticketID}
	return r.watches.Start(ctx, r.feed, topic, r.RefreshMessages)
}

// Close stops every watch and discards refresh results that land later.
func (r *Repository) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.watches.Close()
}

func (r *Repository) fetchTicket(ctx context.Context) (*domain.Ticket, error) {
	actor, ok := r.session.Actor()
	if !ok {
		return nil, nil
	}
	t, err := r.gw.Tickets().Get(ctx, r.ticketID)
	if err != nil {
		if gateway.IsNotFound(err) {
			return nil, nil
		}
		r.metrics.RecordRefresh("conversation.ticket", err)
		r.logger.Error("fetch ticket", zap.String("actor_id", actor.ID), zap.Error(err))
		return nil, err
	}
	r.metrics.RecordRefresh("conversation.ticket", nil)
	if !actor.CanView(t) {
		return nil, nil
	}
	return t, nil
}

func (r *Repository) fetchMessages(ctx context.Context) ([]domain.Message, error) {
	actor, ok := r.session.Actor()
	if !ok {
		return []domain.Message{}, nil
	}
	if !actor.Role.IsStaff() {
		t, err := r.gw.Tickets().Get(ctx, r.ticketID)
		if err != nil && !gateway.IsNotFound(err) {
			r.logger.Error("fetch messages", zap.String("actor_id", actor.ID), zap.Error(err))
			return []domain.Message{}, err
		}
		if t == nil || !actor.CanView(t) {
			return []domain.Message{}, nil
		}
	}
	msgs, err := r.gw.Messages().Select(ctx, gateway.MessageQuery{
		TicketID:        r.ticketID,
		IncludeInternal: actor.CanSeeInternal(),
	})
	r.metrics.RecordRefresh("conversation.messages", err)
	if err != nil {
		r.logger.Error("fetch messages", zap.String("actor_id", actor.ID), zap.Error(err))
		return []domain.Message{}, err
	}
	return msgs, nil
}
