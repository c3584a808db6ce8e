package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/eigenein/myiot/internal/event"
	pebblestore "github.com/eigenein/myiot/internal/storage/pebble"
	"github.com/eigenein/myiot/pkg/log"
)

// Migration upgrades the keyspace by one version. Apply stages its writes in
// b, which also carries the version bump.
type Migration struct {
	Version uint32
	Name    string
	Apply   func(b *pebble.Batch, db *pebblestore.DB) error
}

var migrations = []Migration{
	{Version: 1, Name: "initial keyspace", Apply: func(*pebble.Batch, *pebblestore.DB) error { return nil }},
	{Version: 2, Name: "drop non-storable actual values", Apply: dropNonStorableActual},
}

// CurrentVersion is the schema version produced by the latest migration.
func CurrentVersion() uint32 {
	return migrations[len(migrations)-1].Version
}

// SchemaVersion reads the stored schema version. A fresh database is at 0.
func (s *Store) SchemaVersion() (uint32, error) {
	v, err := s.db.Get(versionKey)
	if errors.Is(err, pebblestore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, fmt.Errorf("corrupt schema version %x", v)
	}
	return binary.BigEndian.Uint32(v), nil
}

func (s *Store) migrate(ctx context.Context) error {
	version, err := s.SchemaVersion()
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}
	for _, m := range migrations {
		if m.Version <= version {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.Version, m.Name, err)
		}
		s.logger.Info("applied migration", log.Int64("version", int64(m.Version)), log.Str("name", m.Name))
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m Migration) error {
	b := s.db.NewBatch()
	defer b.Close()
	if err := m.Apply(b, s.db); err != nil {
		return err
	}
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], m.Version)
	if err := b.Set(versionKey, v[:], nil); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

func dropNonStorableActual(b *pebble.Batch, db *pebblestore.DB) error {
	var stageErr error
	err := db.Scan(actualPrefix, func(k, v []byte) bool {
		var e event.Event
		if json.Unmarshal(v, &e) != nil || e.Unit.IsStored() {
			return true
		}
		stageErr = b.Delete(k, nil)
		return stageErr == nil
	})
	if err != nil {
		return err
	}
	return stageErr
}
