// Package ticket is the ticket list repository: filtered listing, creation,
// updates, assignment and status changes, each followed by audit and
// notification fan-out and a refetch of the working set.
package ticket

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/fanout"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/identity"
	"github.com/supportsphere/helpdesk/internal/observability"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

// FetchError is the message stored when a refresh fails.
const FetchError = "Failed to fetch tickets"

// ErrClosed is returned by Watch after Close.
var ErrClosed = changefeed.ErrClosed

// Filter narrows the list. All set constraints must hold.
type Filter struct {
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	AssignedAgent *string
	AssignedTeam  *string
	CategoryID    *string
	Search        string
}

// Snapshot is a copy of the repository's local state.
type Snapshot struct {
	Tickets []domain.Ticket
	Loading bool
	Error   string
}

// CreateInput describes a new ticket.
type CreateInput struct {
	Title          string
	Description    string
	Priority       domain.TicketPriority
	CategoryID     *string
	AssignedTeam   *string
	SLAResponseDue *time.Time
	SLAResolveDue  *time.Time
}

// Deps are the collaborators a repository needs.
type Deps struct {
	Gateway  gateway.Gateway
	Feed     changefeed.Feed
	Recorder fanout.Recorder
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// Repository holds one session's view of the ticket list. It is safe for
// concurrent use.
type Repository struct {
	session  identity.Session
	gw       gateway.Gateway
	feed     changefeed.Feed
	recorder fanout.Recorder
	logger   *zap.Logger
	metrics  *observability.Metrics

	mu      sync.RWMutex
	filter  Filter
	tickets []domain.Ticket
	loading bool
	errMsg  string
	closed  bool
	watches changefeed.Watches
}

// NewRepository builds a repository acting as session with an initial
// filter. A nil Recorder falls back to best-effort direct writes.
func NewRepository(session identity.Session, filter Filter, deps Deps) *Repository {
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
		gw:       deps.Gateway,
		feed:     deps.Feed,
		recorder: recorder,
		logger:   logger.With(zap.String("repository", "tickets")),
		metrics:  deps.Metrics,
		filter:   filter,
		tickets:  []domain.Ticket{},
	}
}

// List queries tickets matching filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]domain.Ticket, error) {
	actor, ok := r.session.Actor()
	if !ok {
		return nil, apperrors.NewAuthRequired()
	}
	tickets, err := r.gw.Tickets().Select(ctx, toQuery(actor, filter))
	if err != nil {
		return nil, apperrors.NewPersistenceError("list tickets", err)
	}
	return tickets, nil
}

// Refresh re-runs the list with the held filter. Failures are stored on the
// snapshot and the previous tickets are kept.
func (r *Repository) Refresh(ctx context.Context) {
	actor, ok := r.session.Actor()
	if !ok {
		r.mu.Lock()
		if !r.closed {
			r.tickets = []domain.Ticket{}
			r.loading = false
			r.errMsg = ""
		}
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.loading = true
	filter := r.filter
	r.mu.Unlock()

	tickets, err := r.gw.Tickets().Select(ctx, toQuery(actor, filter))
	r.metrics.RecordRefresh("tickets", err)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.loading = false
	if err != nil {
		r.logger.Error("refresh tickets", zap.String("actor_id", actor.ID), zap.Error(err))
		r.errMsg = FetchError
		return
	}
	r.tickets = tickets
	r.errMsg = ""
}

// SetFilter replaces the held filter and refreshes.
func (r *Repository) SetFilter(ctx context.Context, filter Filter) {
	r.mu.Lock()
	r.filter = filter
	r.mu.Unlock()
	r.Refresh(ctx)
}

// Filter returns the held filter.
func (r *Repository) Filter() Filter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter
}

// Snapshot returns a copy of the local state.
func (r *Repository) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Tickets: append([]domain.Ticket{}, r.tickets...),
		Loading: r.loading,
		Error:   r.errMsg,
	}
}

// Create inserts a ticket owned by the acting user.
func (r *Repository) Create(ctx context.Context, in CreateInput) (*domain.Ticket, error) {
	actor, ok := r.session.Actor()
	if !ok {
		return nil, apperrors.NewAuthRequired()
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	details := map[string]any{}
	if title == "" {
		details["title"] = "required"
	}
	if description == "" {
		details["description"] = "required"
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		details["priority"] = "invalid"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	var created *domain.Ticket
	err := r.recorder.Commit(ctx, func(gw gateway.Gateway) ([]fanout.Effect, error) {
		t, err := gw.Tickets().Insert(ctx, gateway.TicketInsert{
			Title:          title,
			Description:    description,
			Priority:       priority,
			Status:         domain.TicketStatusOpen,
			CreatedBy:      actor.ID,
			AssignedTeam:   in.AssignedTeam,
			CategoryID:     in.CategoryID,
			SLAResponseDue: in.SLAResponseDue,
			SLAResolveDue:  in.SLAResolveDue,
		})
		if err != nil {
			return nil, err
		}
		created = t
		return fanout.TicketCreated(actor.ID, t), nil
	})
	if err != nil {
		return nil, apperrors.WrapPersistence("create ticket", err)
	}

	r.Refresh(ctx)
	return created, nil
}

// Update applies an arbitrary patch. A status in the patch must be a legal
// transition from the current one.
func (r *Repository) Update(ctx context.Context, id string, patch domain.TicketPatch) (*domain.Ticket, error) {
	actor, ok := r.session.Actor()
	if !ok {
		return nil, apperrors.NewAuthRequired()
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	var updated *domain.Ticket
	err := r.recorder.Commit(ctx, func(gw gateway.Gateway) ([]fanout.Effect, error) {
		current, err := loadForWrite(ctx, gw, actor, id)
		if err != nil {
			return nil, err
		}
		if patch.Status.Present {
			if err := checkTransition(current.Status, *patch.Status.Value); err != nil {
				return nil, err
			}
		}
		t, err := gw.Tickets().Update(ctx, id, patch)
		if err != nil {
			return nil, err
		}
		updated = t
		return fanout.TicketUpdated(actor.ID, id, patch), nil
	})
	if err != nil {
		return nil, apperrors.WrapPersistence("update ticket", err)
	}

	r.Refresh(ctx)
	return updated, nil
}

// AssignOption adjusts an assignment.
type AssignOption func(*assignment)

type assignment struct {
	team    *string
	setTeam bool
}

// WithTeam also sets the assigned team; nil clears it.
func WithTeam(teamID *string) AssignOption {
	return func(a *assignment) {
		a.team = normalizeRef(teamID)
		a.setTeam = true
	}
}

// Assign sets or clears the agent. The status becomes assigned when an agent
// is set and open when cleared. The team is left unchanged unless WithTeam is
// given.
func (r *Repository) Assign(ctx context.Context, id string, agentID *string, opts ...AssignOption) (*domain.Ticket, error) {
	actor, ok := r.session.Actor()
	if !ok {
		return nil, apperrors.NewAuthRequired()
	}
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only staff can assign tickets")
	}

	var a assignment
	for _, opt := range opts {
		opt(&a)
	}
	agentID = normalizeRef(agentID)
	status := domain.TicketStatusOpen
	if agentID != nil {
		status = domain.TicketStatusAssigned
	}

	patch := domain.TicketPatch{
		AssignedAgent: domain.SetPtr(agentID),
		Status:        domain.Set(status),
	}
	if a.setTeam {
		patch.AssignedTeam = domain.SetPtr(a.team)
	}

	var updated *domain.Ticket
	err := r.recorder.Commit(ctx, func(gw gateway.Gateway) ([]fanout.Effect, error) {
		current, err := loadForWrite(ctx, gw, actor, id)
		if err != nil {
			return nil, err
		}
		if err := checkTransition(current.Status, status); err != nil {
			return nil, err
		}
		t, err := gw.Tickets().Update(ctx, id, patch)
		if err != nil {
			return nil, err
		}
		updated = t
		return fanout.TicketAssigned(actor.ID, t, agentID, a.team, a.setTeam), nil
	})
	if err != nil {
		return nil, apperrors.WrapPersistence("assign ticket", err)
	}

	r.Refresh(ctx)
	return updated, nil
}

// UpdateStatus moves the ticket to status and notifies its creator when
// someone else made the change.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	actor, ok := r.session.Actor()
	if !ok {
		return nil, apperrors.NewAuthRequired()
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(status)})
	}

	var updated *domain.Ticket
	err := r.recorder.Commit(ctx, func(gw gateway.Gateway) ([]fanout.Effect, error) {
		current, err := loadForWrite(ctx, gw, actor, id)
		if err != nil {
			return nil, err
		}
		if err := checkTransition(current.Status, status); err != nil {
			return nil, err
		}
		t, err := gw.Tickets().Update(ctx, id, domain.TicketPatch{Status: domain.Set(status)})
		if err != nil {
			return nil, err
		}
		updated = t
		return fanout.StatusChanged(actor.ID, t, status), nil
	})
	if err != nil {
		return nil, apperrors.WrapPersistence("update ticket status", err)
	}

	r.Refresh(ctx)
	return updated, nil
}

// Watch refreshes on every change to the tickets table until stop is called,
// ctx ends or the repository is closed. stop is idempotent.
func (r *Repository) Watch(ctx context.Context) (func(), error) {
	return r.watches.Start(ctx, r.feed, changefeed.Topic{Table: changefeed.TableTickets}, r.Refresh)
}

// Close stops every watch and discards refresh results that land later.
func (r *Repository) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.watches.Close()
}

func toQuery(actor domain.Actor, f Filter) gateway.TicketQuery {
	q := gateway.TicketQuery{
		Statuses:      f.Statuses,
		Priorities:    f.Priorities,
		AssignedAgent: f.AssignedAgent,
		AssignedTeam:  f.AssignedTeam,
		CategoryID:    f.CategoryID,
		Search:        strings.TrimSpace(f.Search),
	}
	if !actor.Role.IsStaff() {
		id := actor.ID
		q.CreatedBy = &id
	}
	return q
}

func loadForWrite(ctx context.Context, gw gateway.Gateway, actor domain.Actor, id string) (*domain.Ticket, error) {
	current, err := gw.Tickets().Get(ctx, id)
	if err != nil {
		if gateway.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, err
	}
	if !actor.CanView(current) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return current, nil
}

func checkTransition(from, to domain.TicketStatus) error {
	if !domain.CanTransition(from, to) {
		return apperrors.NewInvalidTransition(string(from), string(to))
	}
	return nil
}

func validatePatch(p domain.TicketPatch) error {
	if p.IsEmpty() {
		return apperrors.NewValidationError("empty update", nil)
	}
	details := map[string]any{}
	if p.Title.Present && (p.Title.Value == nil || strings.TrimSpace(*p.Title.Value) == "") {
		details["title"] = "required"
	}
	if p.Description.Present && (p.Description.Value == nil || strings.TrimSpace(*p.Description.Value) == "") {
		details["description"] = "required"
	}
	if p.Priority.Present && (p.Priority.Value == nil || !p.Priority.Value.Valid()) {
		details["priority"] = "invalid"
	}
	if p.Status.Present && (p.Status.Value == nil || !p.Status.Value.Valid()) {
		details["status"] = "invalid"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid update", details)
	}
	return nil
}

func normalizeRef(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return id
}
