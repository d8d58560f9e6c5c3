package changefeed

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Watches.Start after Close.
var ErrClosed = errors.New("changefeed: watches closed")

// Watches runs a callback per signal for a set of subscriptions and stops
// them together. The zero value is ready to use.
type Watches struct {
	mu     sync.Mutex
	closed bool
	next   int
	stops  map[int]func()
}

// Start subscribes to topic on feed and calls onSignal for every delivered
// signal until stop is called, ctx ends or Close is called. stop is
// idempotent.
func (w *Watches) Start(ctx context.Context, feed Feed, topic Topic, onSignal func(context.Context)) (func(), error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	w.mu.Unlock()

	sub, err := feed.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		sub.Close()
		return nil, ErrClosed
	}
	if w.stops == nil {
		w.stops = make(map[int]func())
	}
	w.next++
	id := w.next
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			sub.Close()
			close(done)
			w.mu.Lock()
			delete(w.stops, id)
			w.mu.Unlock()
		})
	}
	w.stops[id] = stop
	w.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				stop()
				return
			case <-done:
				return
			case _, ok := <-sub.C:
				if !ok {
					stop()
					return
				}
				onSignal(ctx)
			}
		}
	}()
	return stop, nil
}

// Active returns the number of running watches.
func (w *Watches) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.stops)
}

// Close stops every watch and rejects new ones.
func (w *Watches) Close() {
	w.mu.Lock()
	w.closed = true
	stops := make([]func(), 0, len(w.stops))
	for _, stop := range w.stops {
		stops = append(stops, stop)
	}
	w.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}
