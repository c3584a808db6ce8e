package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"time"
)

// ErrNoChannel is returned when an event without a channel is persisted.
var ErrNoChannel = errors.New("event has no channel")

// Event is one observation of a channel.
type Event struct {
	Channel   string    `json:"channel"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Unit      Unit      `json:"unit,omitempty"`
	Title     string    `json:"title,omitempty"`
	// NotLogged excludes the event from the log projection. The zero value
	// keeps struct literals logged; JSON carries the flag as is_logged.
	NotLogged bool `json:"-"`
}

// Option customizes an Event built by New.
type Option func(*Event)

// WithTitle sets the display title.
func WithTitle(title string) Option { return func(e *Event) { e.Title = title } }

// WithTimestamp overrides the creation time.
func WithTimestamp(ts time.Time) Option { return func(e *Event) { e.Timestamp = ts } }

// NotLogged excludes the event from the log projection.
func NotLogged() Option { return func(e *Event) { e.NotLogged = true } }

// Now is the clock used for default timestamps.
var Now = func() time.Time { return time.Now() }

// New builds an event stamped with the current time.
func New(channel string, value any, unit Unit, opts ...Option) Event {
	e := Event{
		Channel:   channel,
		Value:     value,
		Timestamp: Now(),
		Unit:      unit,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Normalize fills defaults on events built as struct literals and truncates
// the timestamp to the microsecond resolution of log keys.
func (e *Event) Normalize() {
	if e.Timestamp.IsZero() {
		e.Timestamp = Now()
	}
	e.Timestamp = e.Timestamp.Truncate(time.Microsecond)
}

// Validate checks the invariants required for persistence.
func (e Event) Validate() error {
	if e.Channel == "" {
		return ErrNoChannel
	}
	return nil
}

// DisplayTitle returns the title, falling back to the channel.
func (e Event) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	return e.Channel
}

// IsLogged reports whether the event belongs in the log projection. Units
// that are never logged win over the flag.
func (e Event) IsLogged() bool {
	return !e.NotLogged && e.Unit.IsLogged()
}

// MarshalJSON writes the effective is_logged flag.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	return json.Marshal(struct {
		plain
		IsLogged bool `json:"is_logged"`
	}{plain(e), e.IsLogged()})
}

// UnmarshalJSON defaults is_logged to true when absent.
func (e *Event) UnmarshalJSON(b []byte) error {
	type plain Event
	var w struct {
		plain
		IsLogged *bool `json:"is_logged"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*e = Event(w.plain)
	e.NotLogged = w.IsLogged != nil && !*w.IsLogged
	return nil
}

// LogEntry is the compact log projection of an event.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Value     any       `json:"value"`
}

// ValuesEqual compares two dynamically typed values. Values that went
// through a JSON round trip compare equal to their originals, so 1 equals
// 1.0 and map[string]any equals an equivalent struct.
func ValuesEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	if bytes.Equal(ja, jb) {
		return true
	}
	// normalize key order and number formatting of nested structures
	var na, nb any
	if json.Unmarshal(ja, &na) != nil || json.Unmarshal(jb, &nb) != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}
