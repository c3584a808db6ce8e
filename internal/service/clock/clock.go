// Package clock produces a counter event on a fixed interval.
package clock

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/service"
)

// Options configures a Clock.
type Options struct {
	// Name is appended to the "clock:" channel prefix.
	Name     string
	Interval time.Duration
	Title    string
}

// Clock yields clock:{name} with values 1, 2, 3... every Interval. The counter
// restarts from 1 on every call to Events.
type Clock struct {
	opts Options
}

func New(opts Options) *Clock {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Clock{opts: opts}
}

func (c *Clock) String() string {
	return fmt.Sprintf("Clock(name=%q, interval=%s)", c.opts.Name, c.opts.Interval)
}

// Channel returns the channel the clock writes to.
func (c *Clock) Channel() string { return "clock:" + c.opts.Name }

func (c *Clock) Events(ctx context.Context) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		for i := 1; ; i++ {
			if service.Sleep(ctx, c.opts.Interval) != nil {
				return
			}
			if !yield(event.New(c.Channel(), i, event.Text, event.WithTitle(c.opts.Title)), nil) {
				return
			}
		}
	}
}

func (c *Clock) Close() error { return nil }
