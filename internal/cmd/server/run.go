package serverrun

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/eigenein/myiot/internal/automation"
	cfgpkg "github.com/eigenein/myiot/internal/config"
	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/router"
	"github.com/eigenein/myiot/internal/runner"
	"github.com/eigenein/myiot/internal/runtime"
	httpserver "github.com/eigenein/myiot/internal/server/http"
	pebblestore "github.com/eigenein/myiot/internal/storage/pebble"
	logpkg "github.com/eigenein/myiot/pkg/log"
)

// VersionChannel receives the running version at startup.
const VersionChannel = "myiot:version"

// DefaultRetentionInterval is how often old log entries are trimmed.
const DefaultRetentionInterval = time.Hour

type Options struct {
	Config  cfgpkg.Config
	Version string
	// Logger overrides the logger built from Config.Log.
	Logger            logpkg.Logger
	RetentionInterval time.Duration
}

// Run starts the hub and blocks until ctx is cancelled or a signal arrives.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	procLogger := opts.Logger
	if procLogger == nil {
		procLogger = buildLogger(cfg.Log)
	}
	// Redirect stdlib logs (e.g., Pebble) to our logger
	logpkg.RedirectStdLog(procLogger)

	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	fsync, err := pebblestore.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return err
	}
	rt, err := runtime.Open(sctx, runtime.Options{
		DataDir:       filepath.Join(cfg.DataDir, "store"),
		Fsync:         fsync,
		FsyncInterval: ms(cfg.FsyncIntervalMs),
		Config:        cfg,
		Logger:        procLogger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	client := &http.Client{Timeout: ms(cfg.HTTPTimeoutMs)}
	services, err := automation.BuildServices(cfg.Services, client, procLogger)
	if err != nil {
		return err
	}
	sinks := automation.NewSinks(cfg.Sinks, procLogger)
	defer func() {
		if err := sinks.Close(); err != nil {
			procLogger.Warn("failed to close sinks", logpkg.Err(err))
		}
	}()

	hsrv := httpserver.New(rt, procLogger)
	r := router.New(procLogger)
	r.Register("feed", hsrv.Feed().Handler())
	if err := automation.RegisterRules(r, cfg.Rules, sinks, procLogger); err != nil {
		return err
	}
	run := runner.New(rt.Store(), r, runner.Options{
		Logger:       procLogger,
		Client:       client,
		BackoffUnit:  ms(cfg.Backoff.UnitMs),
		BackoffCap:   cfg.Backoff.Cap,
		DrainTimeout: ms(cfg.DrainTimeoutMs),
	})

	procLogger.Info("Starting myiot",
		logpkg.Str("version", opts.Version),
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("fsync", cfg.Fsync),
		logpkg.Int("services", len(services)),
		logpkg.Int("handlers", r.Len()),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
	)
	if err := run.Trigger(sctx, event.New(VersionChannel, opts.Version, event.Text)); err != nil {
		procLogger.Error("failed to save version", logpkg.Err(err))
	}

	// HTTP outlives the runner so the feed sees the drained events.
	httpCtx, stopHTTP := context.WithCancel(context.WithoutCancel(sctx))
	defer stopHTTP()
	httpErr := make(chan error, 1)
	go func() { httpErr <- hsrv.ListenAndServe(httpCtx, cfg.HTTPAddr) }()

	runCtx, cancelRun := context.WithCancel(sctx)
	defer cancelRun()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := run.Run(runCtx, services); err != nil && runCtx.Err() == nil {
			procLogger.Error("runner error", logpkg.Err(err))
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		interval := opts.RetentionInterval
		if interval <= 0 {
			interval = DefaultRetentionInterval
		}
		rt.RunRetention(runCtx, interval)
	}()

	var serveErr error
	select {
	case <-sctx.Done():
	case serveErr = <-httpErr:
		if serveErr != nil {
			procLogger.Error("http error", logpkg.Err(serveErr))
		}
		httpErr = nil
	}
	cancelRun()
	wg.Wait()
	stopHTTP()
	if httpErr != nil {
		if err := <-httpErr; err != nil {
			procLogger.Error("http error", logpkg.Err(err))
		}
	}
	hsrv.Close()
	procLogger.Info("myiot stopped")
	return serveErr
}

// buildLogger applies cfg and falls back to a text logger on invalid values.
func buildLogger(cfg cfgpkg.LogConfig) logpkg.Logger {
	lc := &logpkg.Config{Level: cfg.Level, Format: cfg.Format, Redact: cfg.Redact}
	logger, err := logpkg.ApplyConfig(lc)
	if err == nil {
		return logger
	}
	lvl := logpkg.InfoLevel
	if l, e := logpkg.ParseLevel(cfg.Level); e == nil {
		lvl = l
	}
	return logpkg.NewLogger(
		logpkg.WithLevel(lvl),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithRedactedKeys(cfg.Redact...),
	)
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
