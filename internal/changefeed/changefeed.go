// Package changefeed delivers payload-free "table changed" signals to
// subscribers so they can refetch their working set.
package changefeed

import (
	"context"
	"encoding/json"
	"sync"
)

// Tables that emit change signals.
const (
	TableTickets       = "tickets"
	TableMessages      = "ticket_messages"
	TableNotifications = "notifications"
)

// Signal identifies a changed row by table and routing keys. Subscribers
// only ever see that something matching their topic changed.
type Signal struct {
	Table    string `json:"table"`
	TicketID string `json:"ticket_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// Topic selects signals. Empty TicketID or UserID match any value.
type Topic struct {
	Table    string
	TicketID string
	UserID   string
}

// Matches reports whether s falls under the topic.
func (t Topic) Matches(s Signal) bool {
	if t.Table != s.Table {
		return false
	}
	if t.TicketID != "" && t.TicketID != s.TicketID {
		return false
	}
	if t.UserID != "" && t.UserID != s.UserID {
		return false
	}
	return true
}

// Feed hands out subscriptions.
type Feed interface {
	Subscribe(ctx context.Context, topic Topic) (*Subscription, error)
}

// Publisher emits signals.
type Publisher interface {
	Publish(ctx context.Context, signal Signal) error
}

// NopPublisher drops every signal.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Signal) error { return nil }

// Subscription receives at most one pending signal at a time; bursts are
// coalesced. Close is idempotent and closes C.
type Subscription struct {
	C <-chan struct{}

	ch      chan struct{}
	done    chan struct{}
	once    sync.Once
	release func()
}

func newSubscription(release func()) *Subscription {
	ch := make(chan struct{}, 1)
	return &Subscription{C: ch, ch: ch, done: make(chan struct{}), release: release}
}

func (s *Subscription) closed() <-chan struct{} {
	return s.done
}

func (s *Subscription) notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Close stops delivery and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
		close(s.done)
		close(s.ch)
	})
}

// EncodeSignal renders a signal in the wire format shared by the database
// trigger and the redis bridge.
func EncodeSignal(s Signal) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSignal parses the wire format.
func DecodeSignal(payload []byte) (Signal, error) {
	var s Signal
	if err := json.Unmarshal(payload, &s); err != nil {
		return Signal{}, err
	}
	return s, nil
}
