package router

import (
	"context"
	"fmt"
	"regexp"

	"github.com/eigenein/myiot/internal/event"
)

// Predicate decides whether a delivery reaches a handler.
type Predicate func(d Delivery) bool

// Decorator wraps a handler.
type Decorator func(Handler) Handler

// If skips the handler when p is false.
func If(p Predicate) Decorator {
	return func(next Handler) Handler {
		return func(ctx context.Context, d Delivery) error {
			if !p(d) {
				return nil
			}
			return next(ctx, d)
		}
	}
}

// Chain applies decorators so that the first one is the outermost.
func Chain(decorators ...Decorator) Decorator {
	return func(h Handler) Handler {
		for i := len(decorators) - 1; i >= 0; i-- {
			h = decorators[i](h)
		}
		return h
	}
}

// Always matches every delivery.
func Always(Delivery) bool { return true }

// IfChannelLike matches the whole channel name against pattern.
func IfChannelLike(pattern string) (Predicate, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("channel pattern %q: %w", pattern, err)
	}
	return func(d Delivery) bool { return re.MatchString(d.Event.Channel) }, nil
}

// MustChannelLike is IfChannelLike for patterns known at compile time.
func MustChannelLike(pattern string) Predicate {
	p, err := IfChannelLike(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// IfNewer holds when there is no previous value or the event is strictly newer.
func IfNewer(d Delivery) bool {
	return d.Previous == nil || d.Event.Timestamp.After(d.Previous.Timestamp)
}

// IfChanged holds when there is no previous value or the value differs.
func IfChanged(d Delivery) bool {
	return d.Previous == nil || !event.ValuesEqual(d.Event.Value, d.Previous.Value)
}

// IfEquals holds when the event value equals v under ValuesEqual.
func IfEquals(v any) Predicate {
	return func(d Delivery) bool { return event.ValuesEqual(d.Event.Value, v) }
}

// IfNotEqual is the negation of IfEquals.
func IfNotEqual(v any) Predicate {
	return func(d Delivery) bool { return !event.ValuesEqual(d.Event.Value, v) }
}

// IfActualValueEquals compares the actual value of another channel.
// A missing channel never matches.
func IfActualValueEquals(channel string, v any) Predicate {
	return func(d Delivery) bool {
		e, ok := d.Actual[channel]
		return ok && event.ValuesEqual(e.Value, v)
	}
}

// IfActualValueNotEqual is the negation of IfActualValueEquals, so a missing
// channel matches.
func IfActualValueNotEqual(channel string, v any) Predicate {
	eq := IfActualValueEquals(channel, v)
	return func(d Delivery) bool { return !eq(d) }
}

// All holds when every predicate holds.
func All(ps ...Predicate) Predicate {
	return func(d Delivery) bool {
		for _, p := range ps {
			if !p(d) {
				return false
			}
		}
		return true
	}
}
