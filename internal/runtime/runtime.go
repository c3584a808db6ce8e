package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/eigenein/myiot/internal/config"
	pebblestore "github.com/eigenein/myiot/internal/storage/pebble"
	"github.com/eigenein/myiot/internal/store"
	"github.com/eigenein/myiot/pkg/log"
)

// SlowCommit is the batch commit latency above which a warning is logged.
const SlowCommit = 250 * time.Millisecond

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        log.Logger
}

// Runtime owns the database and the event store on top of it.
type Runtime struct {
	db     *pebblestore.DB
	store  *store.Store
	config cfgpkg.Config
	logger log.Logger
}

// Open initializes the underlying storage and returns a Runtime.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       slowCommits{logger: logger.WithComponent("pebble")},
	})
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, db, store.Options{Logger: logger})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Runtime{db: db, store: st, config: opts.Config, logger: logger}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Healthy()
}

// Store returns the event store.
func (r *Runtime) Store() *store.Store { return r.store }

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// RunRetention trims log entries older than the configured retention every
// interval until ctx is done. It returns immediately when retention is off.
func (r *Runtime) RunRetention(ctx context.Context, interval time.Duration) {
	retention := r.config.LogRetention.Std()
	if retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := r.store.TrimAll(ctx, time.Now().Add(-retention)); err != nil && ctx.Err() == nil {
			r.logger.Error("log retention failed", log.Err(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

type slowCommits struct{ logger log.Logger }

func (slowCommits) ObserveRead(time.Duration, int) {}

func (s slowCommits) ObserveBatchCommit(elapsed time.Duration, bytes int) {
	if elapsed > SlowCommit {
		s.logger.Warn("slow batch commit", log.Dur("elapsed", elapsed), log.Int("bytes", bytes))
	}
}
