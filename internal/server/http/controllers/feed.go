package controllers

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/router"
)

// DefaultFeedBuffer is the per-subscriber queue length.
const DefaultFeedBuffer = 64

// Feed fans dispatched events out to live subscribers. A subscriber that
// falls behind loses events rather than blocking dispatch.
type Feed struct {
	buffer  int
	dropped atomic.Uint64

	mu   sync.Mutex
	subs map[chan event.Event]struct{}
}

// NewFeed creates a feed with the given per-subscriber buffer.
func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &Feed{buffer: buffer, subs: make(map[chan event.Event]struct{})}
}

// Handler returns a router handler that publishes every delivery.
func (f *Feed) Handler() router.Handler {
	return func(_ context.Context, d router.Delivery) error {
		f.Publish(d.Event)
		return nil
	}
}

// Publish offers e to every subscriber without blocking.
func (f *Feed) Publish(e event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- e:
		default:
			f.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func must be called
// once and closes the channel.
func (f *Feed) Subscribe() (<-chan event.Event, func()) {
	ch := make(chan event.Event, f.buffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Dropped returns how many events were dropped for slow subscribers.
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }
