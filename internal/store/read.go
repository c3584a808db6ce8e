package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/eigenein/myiot/internal/event"
	pebblestore "github.com/eigenein/myiot/internal/storage/pebble"
)

// GetLog returns the channel's log entries from now-period onwards in
// ascending time order.
func (s *Store) GetLog(ctx context.Context, channel string, period time.Duration) ([]event.LogEntry, error) {
	return s.GetLogRange(ctx, channel, s.now().Add(-period), time.Time{}, 0)
}

// GetLogRange returns entries with since <= timestamp < until. A zero until
// means no upper bound and limit <= 0 means no limit.
func (s *Store) GetLogRange(ctx context.Context, channel string, since, until time.Time, limit int) ([]event.LogEntry, error) {
	prefix := KeyLogPrefix(channel)
	opts := &pebble.IterOptions{
		LowerBound: KeyLogEntry(channel, since),
		UpperBound: pebblestore.PrefixEnd(prefix),
	}
	if !until.IsZero() {
		opts.UpperBound = KeyLogEntry(channel, until)
	}
	iter, err := s.db.NewIter(opts)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []event.LogEntry
	for ok := iter.First(); ok; ok = iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var entry event.LogEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, fmt.Errorf("decode log entry %q: %w", iter.Key(), err)
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}
