// Package memory is an in-process implementation of the persistence
// gateway. It backs the test suites and single-node development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/observability"
)

// Option configures a Gateway.
type Option func(*database)

// WithPublisher routes change signals to p.
func WithPublisher(p changefeed.Publisher) Option {
	return func(db *database) {
		if p != nil {
			db.publisher = p
		}
	}
}

// WithMetrics records gateway operations.
func WithMetrics(m *observability.Metrics) Option {
	return func(db *database) { db.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(db *database) { db.now = now }
}

// Gateway implements gateway.Gateway over mutex-guarded maps.
type Gateway struct {
	db *database
	tx *txState
}

type txState struct {
	pending []changefeed.Signal
}

type database struct {
	mu        sync.Mutex
	data      *dataset
	publisher changefeed.Publisher
	metrics   *observability.Metrics
	now       func() time.Time
	last      time.Time

	faultMu sync.Mutex
	faults  map[string]error
}

type outboxRow struct {
	entry       gateway.OutboxEntry
	availableAt time.Time
	completed   bool
	dead        bool
}

type dataset struct {
	ticketSeq     int64
	tickets       map[string]domain.Ticket
	ticketOrder   []string
	messages      []domain.Message
	audit         []domain.AuditLogEntry
	notifications []domain.Notification
	profiles      map[string]domain.Profile
	teams         map[string]domain.Team
	teamMembers   []domain.TeamMember
	categories    map[string]domain.Category
	accounts      map[string]domain.Account
	outbox        []outboxRow
}

func newDataset() *dataset {
	return &dataset{
		tickets:    make(map[string]domain.Ticket),
		profiles:   make(map[string]domain.Profile),
		teams:      make(map[string]domain.Team),
		categories: make(map[string]domain.Category),
		accounts:   make(map[string]domain.Account),
	}
}

func (d *dataset) clone() *dataset {
	out := &dataset{
		ticketSeq:     d.ticketSeq,
		tickets:       make(map[string]domain.Ticket, len(d.tickets)),
		ticketOrder:   append([]string(nil), d.ticketOrder...),
		messages:      append([]domain.Message(nil), d.messages...),
		audit:         append([]domain.AuditLogEntry(nil), d.audit...),
		notifications: append([]domain.Notification(nil), d.notifications...),
		profiles:      make(map[string]domain.Profile, len(d.profiles)),
		teams:         make(map[string]domain.Team, len(d.teams)),
		teamMembers:   append([]domain.TeamMember(nil), d.teamMembers...),
		categories:    make(map[string]domain.Category, len(d.categories)),
		accounts:      make(map[string]domain.Account, len(d.accounts)),
		outbox:        append([]outboxRow(nil), d.outbox...),
	}
	for k, v := range d.tickets {
		out.tickets[k] = v
	}
	for k, v := range d.profiles {
		out.profiles[k] = v
	}
	for k, v := range d.teams {
		out.teams[k] = v
	}
	for k, v := range d.categories {
		out.categories[k] = v
	}
	for k, v := range d.accounts {
		out.accounts[k] = v
	}
	return out
}

// New creates an empty in-memory gateway.
func New(opts ...Option) *Gateway {
	db := &database{
		data:      newDataset(),
		publisher: changefeed.NopPublisher{},
		now:       time.Now,
		faults:    make(map[string]error),
	}
	for _, opt := range opts {
		opt(db)
	}
	return &Gateway{db: db}
}

// FailOn makes every call of op return err until cleared with a nil err.
func (g *Gateway) FailOn(op string, err error) {
	g.db.faultMu.Lock()
	defer g.db.faultMu.Unlock()
	if err == nil {
		delete(g.db.faults, op)
		return
	}
	g.db.faults[op] = err
}

func (g *Gateway) fault(op string) error {
	g.db.faultMu.Lock()
	defer g.db.faultMu.Unlock()
	return g.db.faults[op]
}

// Tickets implements gateway.Gateway.
func (g *Gateway) Tickets() gateway.TicketStore { return ticketStore{g} }

// Messages implements gateway.Gateway.
func (g *Gateway) Messages() gateway.MessageStore { return messageStore{g} }

// AuditLogs implements gateway.Gateway.
func (g *Gateway) AuditLogs() gateway.AuditLogStore { return auditStore{g} }

// Notifications implements gateway.Gateway.
func (g *Gateway) Notifications() gateway.NotificationStore { return notificationStore{g} }

// Directory implements gateway.Gateway.
func (g *Gateway) Directory() gateway.DirectoryStore { return directoryStore{g} }

// Accounts implements gateway.Gateway.
func (g *Gateway) Accounts() gateway.AccountStore { return accountStore{g} }

// Outbox implements gateway.Gateway.
func (g *Gateway) Outbox() gateway.OutboxStore { return outboxStore{g} }

// InTx runs fn with the store locked; a failed fn restores the previous state.
func (g *Gateway) InTx(ctx context.Context, fn func(tx gateway.Gateway) error) error {
	if g.tx != nil {
		return fn(g)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	g.db.mu.Lock()
	backup := g.db.data.clone()
	txGateway := &Gateway{db: g.db, tx: &txState{}}
	err := fn(txGateway)
	if err != nil {
		g.db.data = backup
	}
	g.db.mu.Unlock()

	if err != nil {
		return err
	}
	g.publish(ctx, txGateway.tx.pending)
	return nil
}

// Ping implements gateway.Gateway.
func (g *Gateway) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements gateway.Gateway.
func (g *Gateway) Close() {}

// run executes fn against the dataset under the store lock and emits the
// returned signals once the write is visible.
func (g *Gateway) run(ctx context.Context, op string, fn func(d *dataset) ([]changefeed.Signal, error)) error {
	err := g.exec(ctx, op, fn)
	g.db.metrics.RecordGatewayOp(op, err)
	return err
}

func (g *Gateway) exec(ctx context.Context, op string, fn func(d *dataset) ([]changefeed.Signal, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.fault(op); err != nil {
		return err
	}

	if g.tx != nil {
		signals, err := fn(g.db.data)
		if err != nil {
			return err
		}
		g.tx.pending = append(g.tx.pending, signals...)
		return nil
	}

	g.db.mu.Lock()
	signals, err := fn(g.db.data)
	g.db.mu.Unlock()
	if err != nil {
		return err
	}
	g.publish(ctx, signals)
	return nil
}

func (g *Gateway) publish(ctx context.Context, signals []changefeed.Signal) {
	for _, s := range signals {
		_ = g.db.publisher.Publish(ctx, s)
	}
}

// stamp returns a strictly increasing timestamp. Callers hold the lock.
func (g *Gateway) stamp() time.Time {
	now := g.db.now().UTC()
	if !now.After(g.db.last) {
		now = g.db.last.Add(time.Microsecond)
	}
	g.db.last = now
	return now
}

var _ gateway.Gateway = (*Gateway)(nil)
