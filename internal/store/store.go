package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/eigenein/myiot/internal/event"
	pebblestore "github.com/eigenein/myiot/internal/storage/pebble"
	"github.com/eigenein/myiot/pkg/log"
)

// ErrNotFound is returned when a channel has no actual value.
var ErrNotFound = errors.New("channel not found")

// Options configures a Store.
type Options struct {
	Logger log.Logger
	// Now is the clock used for period queries. Defaults to time.Now.
	Now func() time.Time
}

// Store owns both projections. Writes are serialized; reads of the actual
// projection are served from memory.
type Store struct {
	db     *pebblestore.DB
	logger log.Logger
	now    func() time.Time

	mu     sync.RWMutex
	actual map[string]event.Event
}

// Open applies pending migrations and loads the actual projection.
func Open(ctx context.Context, db *pebblestore.DB, opts Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("store: nil db")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		db:     db,
		logger: opts.Logger.WithComponent("store"),
		now:    opts.Now,
		actual: make(map[string]event.Event),
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	if err := s.loadActual(); err != nil {
		return nil, err
	}
	s.logger.Debug("store opened", log.Int("channels", len(s.actual)))
	return s, nil
}

func (s *Store) loadActual() error {
	return s.db.Scan(actualPrefix, func(k, v []byte) bool {
		var e event.Event
		if err := json.Unmarshal(v, &e); err != nil {
			s.logger.Warn("skipping undecodable actual value", log.Str("key", string(k)), log.Err(err))
			return true
		}
		s.actual[channelFromActualKey(k)] = e
		return true
	})
}

// SaveEvent persists e into the projections its unit and IsLogged flag allow
// and returns the actual value the channel had before the save. Both
// projections are committed in one batch.
func (s *Store) SaveEvent(ctx context.Context, e event.Event) (*event.Event, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	var previous *event.Event
	if p, ok := s.actual[e.Channel]; ok {
		previous = &p
	}

	stored := e.Unit.IsStored()
	if !stored && !e.IsLogged() {
		return previous, nil
	}

	b := s.db.NewBatch()
	defer b.Close()
	if stored {
		data, err := json.Marshal(e)
		if err != nil {
			return previous, fmt.Errorf("encode %s: %w", e.Channel, err)
		}
		if err := b.Set(KeyActual(e.Channel), data, nil); err != nil {
			return previous, err
		}
	}
	if e.IsLogged() {
		data, err := json.Marshal(event.LogEntry{Timestamp: e.Timestamp, Value: e.Value})
		if err != nil {
			return previous, fmt.Errorf("encode %s log entry: %w", e.Channel, err)
		}
		if err := b.Set(KeyLogEntry(e.Channel, e.Timestamp), data, nil); err != nil {
			return previous, err
		}
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return previous, fmt.Errorf("save %s: %w", e.Channel, err)
	}
	if stored {
		s.actual[e.Channel] = e
	}
	return previous, nil
}

// GetActual returns a snapshot of the actual projection.
func (s *Store) GetActual() map[string]event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.actual)
}

// Actual returns the actual value of one channel.
func (s *Store) Actual(channel string) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.actual[channel]
	if !ok {
		return event.Event{}, ErrNotFound
	}
	return e, nil
}

// Channels lists channels with an actual value in ascending order.
func (s *Store) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.actual))
}
