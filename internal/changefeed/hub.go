package changefeed

import (
	"context"
	"errors"
	"sync"

	"github.com/supportsphere/helpdesk/internal/observability"
)

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("changefeed: hub closed")

// Hub is the in-process fan-out point. It implements both Feed and
// Publisher; the postgres listener and the redis bridge publish into it.
type Hub struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]*hubEntry
	closed  bool
	metrics *observability.Metrics
}

type hubEntry struct {
	topic Topic
	sub   *Subscription
}

// NewHub creates an empty hub. metrics may be nil.
func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{subs: make(map[uint64]*hubEntry), metrics: metrics}
}

// Subscribe registers interest in topic. The subscription is closed when ctx
// is done or when the caller closes it, whichever comes first.
func (h *Hub) Subscribe(ctx context.Context, topic Topic) (*Subscription, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.nextID++
	id := h.nextID
	sub := newSubscription(func() { h.remove(id) })
	h.subs[id] = &hubEntry{topic: topic, sub: sub}
	h.mu.Unlock()

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				sub.Close()
			case <-sub.closed():
			}
		}()
	}
	return sub, nil
}

// Publish delivers s to every matching subscriber without blocking.
func (h *Hub) Publish(_ context.Context, s Signal) error {
	h.metrics.RecordChangeSignal(s.Table)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, entry := range h.subs {
		if entry.topic.Matches(s) {
			entry.sub.notify()
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, entry := range h.subs {
		subs = append(subs, entry.sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}
