package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportsphere/helpdesk/internal/config"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/fanout"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/gateway/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func enqueueTicket(t *testing.T, gw gateway.Gateway) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	var created *domain.Ticket
	err := fanout.NewOutbox(gw).Commit(ctx, func(tx gateway.Gateway) ([]fanout.Effect, error) {
		ticket, err := tx.Tickets().Insert(ctx, gateway.TicketInsert{Title: "Printer down", Description: "offline", CreatedBy: "user-1"})
		if err != nil {
			return nil, err
		}
		created = ticket
		return fanout.TicketCreated("user-1", ticket), nil
	})
	require.NoError(t, err)
	return created
}

func newDrainer(gw gateway.Gateway, clk *clock, maxAttempts int) *OutboxDrainer {
	d := NewOutboxDrainer(gw, config.SideEffectsConfig{OutboxBatch: 10, MaxAttempts: maxAttempts}, nil, nil)
	d.now = clk.Now
	return d
}

func TestRunOnceDeliversEffects(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	gw := memory.New(memory.WithClock(clk.Now))
	ticket := enqueueTicket(t, gw)

	res, err := newDrainer(gw, clk, 3).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Delivered: 2}, res)
	assert.Empty(t, gw.Pending())

	entries, err := gw.AuditLogs().List(ctx, gateway.AuditQuery{TicketID: &ticket.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	notes, err := gw.Notifications().ListForUser(ctx, "user-1", gateway.NotificationQuery{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Ticket Created", notes[0].Title)
}

func TestRunOnceRetriesWithBackoffThenGivesUp(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	gw := memory.New(memory.WithClock(clk.Now))
	enqueueTicket(t, gw)
	gw.FailOn(gateway.OpNotificationsInsert, errors.New("notifications offline"))
	drainer := newDrainer(gw, clk, 2)

	res, err := drainer.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Delivered: 1, Retried: 1}, res)

	pending := gw.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	require.NotNil(t, pending[0].LastError)
	assert.Contains(t, *pending[0].LastError, "notifications offline")

	res, err = drainer.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{}, res)

	clk.Advance(baseBackoff)
	res, err = drainer.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Dead: 1}, res)
	assert.Empty(t, gw.Pending())
}

func TestRunOnceMarksUndecodableEntriesDead(t *testing.T) {
	ctx := context.Background()
	gw := memory.New()
	require.NoError(t, gw.Outbox().Enqueue(ctx, "sms", []byte(`{"kind":"sms"}`)))

	res, err := newDrainer(gw, &clock{now: time.Now()}, 1).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Dead: 1}, res)
}

func TestRunOnceClaimFailure(t *testing.T) {
	gw := memory.New()
	gw.FailOn(gateway.OpOutboxClaim, errors.New("locked"))

	_, err := newDrainer(gw, &clock{now: time.Now()}, 3).RunOnce(context.Background())
	assert.ErrorContains(t, err, "claim outbox")
}

func TestBackoffDoublesUpToCap(t *testing.T) {
	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
	assert.Equal(t, 8*time.Second, backoff(4))
	assert.Equal(t, maxBackoff, backoff(30))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	d := NewOutboxDrainer(memory.New(), config.SideEffectsConfig{}, nil, nil)
	err := d.Start(context.Background(), "every now and then")
	assert.ErrorContains(t, err, "invalid outbox schedule")
}

func TestStartDrainsOnSchedule(t *testing.T) {
	gw := memory.New()
	enqueueTicket(t, gw)
	d := NewOutboxDrainer(gw, config.SideEffectsConfig{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx, "@every 1s") }()

	assert.Eventually(t, func() bool { return len(gw.Pending()) == 0 }, 3*time.Second, 20*time.Millisecond)
	assert.True(t, d.Running())
	cancel()
	require.NoError(t, <-done)
}
