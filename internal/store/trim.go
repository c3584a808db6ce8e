package store

import (
	"bytes"
	"context"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/eigenein/myiot/internal/storage/pebble"
	"github.com/eigenein/myiot/pkg/log"
)

const trimBatchLimit = 1024

// TrimLog deletes the channel's log entries older than cutoff and returns how
// many were removed. Deletes are committed in batches.
func (s *Store) TrimLog(ctx context.Context, channel string, cutoff time.Time) (int, error) {
	return s.trim(ctx, KeyLogPrefix(channel), KeyLogEntry(channel, cutoff), func([]byte) bool { return true })
}

// TrimAll applies TrimLog to every channel present in the log.
func (s *Store) TrimAll(ctx context.Context, cutoff time.Time) (int, error) {
	limit := TimestampKey(cutoff)
	return s.trim(ctx, logPrefix, pebblestore.PrefixEnd(logPrefix), func(k []byte) bool {
		_, tskey, ok := splitLogKey(k)
		return ok && tskey < limit
	})
}

func (s *Store) trim(ctx context.Context, low, high []byte, expired func([]byte) bool) (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	deleted := 0
	for ok := iter.First(); ok; {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		b := s.db.NewBatch()
		n := 0
		for ; ok && n < trimBatchLimit; ok = iter.Next() {
			if !bytes.HasPrefix(iter.Key(), low) || !expired(iter.Key()) {
				continue
			}
			if err := b.Delete(iter.Key(), nil); err != nil {
				b.Close()
				return deleted, err
			}
			n++
		}
		if n > 0 {
			if err := s.db.CommitBatch(ctx, b); err != nil {
				b.Close()
				return deleted, err
			}
			deleted += n
		}
		b.Close()
	}
	if err := iter.Error(); err != nil {
		return deleted, err
	}
	if deleted > 0 {
		s.logger.Info("trimmed log", log.Int("deleted", deleted))
	}
	return deleted, nil
}
