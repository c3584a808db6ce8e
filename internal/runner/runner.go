package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/router"
	"github.com/eigenein/myiot/internal/service"
	"github.com/eigenein/myiot/pkg/log"
)

// MaxBackoffExponent caps the restart delay at unit * 2^16.
const MaxBackoffExponent = 16

// Store is the persistence the runner needs.
type Store interface {
	SaveEvent(ctx context.Context, e event.Event) (*event.Event, error)
	GetActual() map[string]event.Event
}

// Options configures a Runner.
type Options struct {
	Logger log.Logger
	// Client is handed to handlers in every delivery.
	Client *http.Client
	// BackoffUnit is the delay after the first failure. Defaults to 1s.
	BackoffUnit time.Duration
	// BackoffCap is the maximum backoff exponent. Defaults to MaxBackoffExponent.
	BackoffCap int
	// DrainTimeout bounds how long queued dispatches may run after shutdown
	// before their context is cancelled. Defaults to 5s.
	DrainTimeout time.Duration
}

// Runner feeds events from services into the store and the router.
type Runner struct {
	store  Store
	router *router.Router
	opts   Options
	logger log.Logger

	dispatching sync.WaitGroup
}

// New creates a Runner.
func New(store Store, r *router.Router, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = time.Second
	}
	if opts.BackoffCap <= 0 || opts.BackoffCap > MaxBackoffExponent {
		opts.BackoffCap = MaxBackoffExponent
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 5 * time.Second
	}
	return &Runner{
		store:  store,
		router: r,
		opts:   opts,
		logger: opts.Logger.WithComponent("runner"),
	}
}

// Backoff returns unit * 2^min(n, MaxBackoffExponent). Negative n counts as 0.
func Backoff(n int, unit time.Duration) time.Duration {
	return backoff(n, MaxBackoffExponent, unit)
}

func backoff(n, maxExp int, unit time.Duration) time.Duration {
	n = min(max(n, 0), maxExp)
	return unit * time.Duration(1<<n)
}

// Run supervises services until ctx is done, then closes them, drains queued
// dispatches and returns. Service failures are logged, never returned.
func (r *Runner) Run(ctx context.Context, services []service.Service) error {
	if r.store == nil || r.router == nil {
		return errors.New("runner: store and router are required")
	}
	if len(services) == 0 {
		r.logger.Error("no services configured", log.Str("severity", "critical"))
		<-ctx.Done()
		return nil
	}

	handlerCtx, cancelHandlers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelHandlers()

	r.logger.Info("running services", log.Int("count", len(services)))
	var wg sync.WaitGroup
	for _, svc := range services {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.supervise(ctx, handlerCtx, svc)
		}()
	}
	wg.Wait()

	drained := make(chan struct{})
	go func() {
		r.dispatching.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(r.opts.DrainTimeout):
		r.logger.Warn("dispatch drain timed out, cancelling handlers", log.Dur("timeout", r.opts.DrainTimeout))
		cancelHandlers()
		// a handler ignoring its context is abandoned after a second timeout
		select {
		case <-drained:
		case <-time.After(r.opts.DrainTimeout):
			r.logger.Error("handlers did not stop, abandoning them", log.Dur("timeout", r.opts.DrainTimeout))
		}
	}
	r.logger.Info("all services stopped")
	return nil
}

// Trigger persists e and dispatches it synchronously. It serves events that
// do not come from a service, such as the startup version event.
func (r *Runner) Trigger(ctx context.Context, e event.Event) error {
	d, err := r.persist(ctx, e)
	if err != nil {
		return err
	}
	r.router.Dispatch(ctx, d)
	return nil
}

func (r *Runner) persist(ctx context.Context, e event.Event) (router.Delivery, error) {
	e.Normalize()
	previous, err := r.store.SaveEvent(ctx, e)
	if err != nil {
		return router.Delivery{}, fmt.Errorf("persist %s: %w", e.Channel, err)
	}
	r.logger.Debug("event", log.Str("channel", e.Channel), log.Any("value", e.Value))
	return router.Delivery{
		Event:    e,
		Previous: previous,
		Actual:   r.store.GetActual(),
		Client:   r.opts.Client,
	}, nil
}

func (r *Runner) supervise(ctx, handlerCtx context.Context, svc service.Service) {
	logger := r.logger.With(log.Str("service", svc.String()))
	q := &queue{}
	errorCount := 0

	for ctx.Err() == nil {
		logger.Info("running service")
		err := r.runOnce(ctx, handlerCtx, svc, q, func() { errorCount = 0 })
		if ctx.Err() != nil {
			break
		}
		if err == nil {
			// a finished sequence is restarted right away
			errorCount = 0
			continue
		}

		errorCount++
		connectivity := service.IsConnectivity(err)
		var perr *panicError
		switch {
		case connectivity:
			logger.Warn("service connection error", log.Err(err))
		case errors.As(err, &perr):
			logger.Error("service failed", log.Err(err), log.Str(log.StackKey, string(perr.stack)))
		default:
			logger.Error("service failed", log.Err(err))
		}
		delay := backoff(errorCount, r.opts.BackoffCap, r.opts.BackoffUnit)
		if connectivity {
			logger.Warn("restarting service", log.Int("errors", errorCount), log.Dur("delay", delay))
		} else {
			logger.Error("restarting service", log.Int("errors", errorCount), log.Dur("delay", delay))
		}
		if service.Sleep(ctx, delay) != nil {
			break
		}
	}

	if err := svc.Close(); err != nil {
		logger.Warn("failed to close service", log.Err(err))
	}
	logger.Info("service stopped")
}

// runOnce drains one event sequence. A panic in the producer counts as a failure.
func (r *Runner) runOnce(ctx, handlerCtx context.Context, svc service.Service, q *queue, onEvent func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p, stack: debug.Stack()}
		}
	}()
	for e, err := range svc.Events(ctx) {
		if err != nil {
			return err
		}
		onEvent()
		d, err := r.persist(handlerCtx, e)
		if err != nil {
			return err
		}
		r.enqueue(handlerCtx, q, d)
	}
	return nil
}

// panicError carries a recovered producer panic with the stack of the
// panicking goroutine.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string { return fmt.Sprintf("service panicked: %v", e.value) }

// queue keeps one service's deliveries in order. At most one goroutine drains it.
type queue struct {
	mu       sync.Mutex
	items    []router.Delivery
	draining bool
}

func (r *Runner) enqueue(ctx context.Context, q *queue, d router.Delivery) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, d)
	if q.draining {
		return
	}
	q.draining = true
	r.dispatching.Add(1)
	go r.drain(ctx, q)
}

func (r *Runner) drain(ctx context.Context, q *queue) {
	defer r.dispatching.Done()
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		d := q.items[0]
		q.items[0] = router.Delivery{}
		q.items = q.items[1:]
		q.mu.Unlock()

		r.router.Dispatch(ctx, d)
	}
}
