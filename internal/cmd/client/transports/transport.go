package transports

import (
	"context"
	"errors"
	"time"

	"github.com/eigenein/myiot/internal/event"
)

// ErrNotFound is returned when the server has no value for a channel.
var ErrNotFound = errors.New("not found")

// LogQuery selects log entries of one channel. Since overrides Period.
type LogQuery struct {
	Channel string
	Period  time.Duration
	Since   time.Time
	Until   time.Time
	Limit   int
}

// WatchRequest describes a live feed subscription.
type WatchRequest struct {
	// Snapshot asks the server to send current actual values first.
	Snapshot bool
	// Limit stops after N records (0 = infinite).
	Limit int
}

// Transport abstracts how the CLI reaches a running hub.
type Transport interface {
	Health(ctx context.Context) error
	Actual(ctx context.Context) (map[string]event.Event, error)
	ActualChannel(ctx context.Context, channel string) (event.Event, error)
	Channels(ctx context.Context) ([]string, error)
	Log(ctx context.Context, q LogQuery) ([]event.LogEntry, error)
	Watch(ctx context.Context, req WatchRequest, onEvent func(record string, e event.Event) error) error
}
