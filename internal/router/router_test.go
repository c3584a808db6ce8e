package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/pkg/log"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func delivery(value any, ts time.Time, prev *event.Event) Delivery {
	return Delivery{
		Event:    event.New("c", value, event.Celsius, event.WithTimestamp(ts)),
		Previous: prev,
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	logger, out := log.NewCapture()
	r := New(logger)

	var calls []string
	r.Register("fails", func(context.Context, Delivery) error {
		calls = append(calls, "fails")
		return errors.New("boom")
	})
	r.Register("panics", func(context.Context, Delivery) error {
		calls = append(calls, "panics")
		panic("oops")
	})
	r.Register("cancelled", func(context.Context, Delivery) error {
		calls = append(calls, "cancelled")
		return context.Canceled
	})
	r.Register("ok", func(context.Context, Delivery) error {
		calls = append(calls, "ok")
		return nil
	})

	r.Dispatch(context.Background(), delivery(1, t0, nil))

	assert.Equal(t, []string{"fails", "panics", "cancelled", "ok"}, calls)
	assert.Equal(t, 1, out.Count(log.ErrorLevel, "handler failed"))
	assert.Equal(t, 1, out.Count(log.ErrorLevel, "handler panicked"))
	assert.Equal(t, 1, out.Count(log.WarnLevel, "handler cancelled"))

	for _, e := range out.Entries() {
		if e.Message == "handler failed" {
			assert.Equal(t, "fails", e.Fields["handler"])
			assert.NotEmpty(t, e.Fields[log.StackKey])
		}
	}
}

func TestIfNewer(t *testing.T) {
	prev := event.New("c", 1, event.Celsius, event.WithTimestamp(t0))
	assert.True(t, IfNewer(delivery(1, t0, nil)))
	assert.True(t, IfNewer(delivery(1, t0.Add(time.Second), &prev)))
	assert.False(t, IfNewer(delivery(1, t0, &prev)))
	assert.False(t, IfNewer(delivery(1, t0.Add(-time.Second), &prev)))
}

func TestIfChanged(t *testing.T) {
	prev := event.New("c", 1.0, event.Celsius, event.WithTimestamp(t0))
	assert.True(t, IfChanged(delivery(1, t0, nil)))
	assert.False(t, IfChanged(delivery(1, t0, &prev)))
	assert.True(t, IfChanged(delivery(2, t0, &prev)))
}

func TestDecoratorSkipsHandler(t *testing.T) {
	r := New(nil)
	called := 0
	h := func(context.Context, Delivery) error { called++; return nil }
	r.Register("changed", Chain(If(MustChannelLike(`c|d`)), If(IfChanged))(h))

	prev := event.New("c", 1, event.Celsius, event.WithTimestamp(t0))
	r.Dispatch(context.Background(), delivery(1, t0, &prev))
	assert.Zero(t, called)
	r.Dispatch(context.Background(), delivery(2, t0, &prev))
	assert.Equal(t, 1, called)
}

func TestIfChannelLikeIsFullMatch(t *testing.T) {
	p, err := IfChannelLike(`nest:.*:temp`)
	require.NoError(t, err)
	assert.True(t, p(Delivery{Event: event.Event{Channel: "nest:1:temp"}}))
	assert.False(t, p(Delivery{Event: event.Event{Channel: "x:nest:1:temp"}}))
	assert.False(t, p(Delivery{Event: event.Event{Channel: "nest:1:temperature"}}))

	_, err = IfChannelLike(`(`)
	assert.Error(t, err)
}

func TestValuePredicates(t *testing.T) {
	d := delivery(true, t0, nil)
	d.Actual = map[string]event.Event{"door": {Channel: "door", Value: "open"}}

	assert.True(t, IfEquals(true)(d))
	assert.False(t, IfNotEqual(true)(d))
	assert.True(t, IfActualValueEquals("door", "open")(d))
	assert.False(t, IfActualValueEquals("missing", "open")(d))
	assert.True(t, IfActualValueNotEqual("missing", "open")(d))
	assert.False(t, IfActualValueNotEqual("door", "open")(d))
	assert.True(t, All(Always, IfEquals(true))(d))
}

func TestIfExpr(t *testing.T) {
	prev := event.New("c", 20, event.Celsius, event.WithTimestamp(t0))
	d := delivery(22.5, t0.Add(time.Minute), &prev)
	d.Actual = map[string]event.Event{"mode": {Channel: "mode", Value: "heat"}}

	cases := map[string]bool{
		`value > 22`:                               true,
		`value > 22 && channel == "c"`:             true,
		`changed && newer`:                         true,
		`previous.value == 20`:                     true,
		`actual["mode"] == "heat"`:                 true,
		`"missing" in actual`:                      false,
		`unit == "CELSIUS"`:                        true,
		`timestamp_ms - previous.timestamp_ms > 0`: true,
		`value`: false, // non-bool result
		``:      true,
	}
	for expr, want := range cases {
		p, err := IfExpr(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, want, p(d), expr)
	}

	_, err := IfExpr(`value >`)
	assert.Error(t, err)
}

func TestIfExprNullPrevious(t *testing.T) {
	p, err := IfExpr(`previous == null`)
	require.NoError(t, err)
	assert.True(t, p(delivery(1, t0, nil)))
}
