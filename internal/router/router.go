package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/pkg/log"
)

// Delivery is what a handler receives for one persisted event.
type Delivery struct {
	Event event.Event
	// Previous is the channel's actual value before this event, if any.
	Previous *event.Event
	// Actual is a snapshot of the actual projection after the event was saved.
	Actual map[string]event.Event
	// Client is the shared outbound HTTP client.
	Client *http.Client
}

// Handler reacts to a delivery.
type Handler func(ctx context.Context, d Delivery) error

type route struct {
	name    string
	handler Handler
}

// Router holds the ordered handler list.
type Router struct {
	logger log.Logger

	mu     sync.RWMutex
	routes []route
}

// New creates an empty router.
func New(logger log.Logger) *Router {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Router{logger: logger.WithComponent("router")}
}

// Register appends a handler. Names are used in logs only.
func (r *Router) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{name: name, handler: h})
}

// Len returns the number of registered handlers.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Dispatch invokes every handler with d in registration order.
func (r *Router) Dispatch(ctx context.Context, d Delivery) {
	r.mu.RLock()
	routes := append([]route(nil), r.routes...)
	r.mu.RUnlock()

	for _, rt := range routes {
		r.invoke(ctx, rt, d)
	}
}

func (r *Router) invoke(ctx context.Context, rt route, d Delivery) {
	fields := []log.Field{log.Str("handler", rt.name), log.Str("channel", d.Event.Channel)}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler panicked", append(fields, log.Any("panic", fmt.Sprint(p)), log.Stack())...)
		}
	}()

	err := rt.handler(ctx, d)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		r.logger.Warn("handler cancelled", append(fields, log.Err(err))...)
	default:
		r.logger.Error("handler failed", append(fields, log.Err(err), log.Stack())...)
	}
}
