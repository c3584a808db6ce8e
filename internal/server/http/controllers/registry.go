package controllers

import (
	"net/http"

	"github.com/eigenein/myiot/internal/runtime"
	"github.com/eigenein/myiot/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	events  *EventsController
	feed    *FeedController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, feed *Feed, logger log.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		events:  NewEventsController(rt.Store()),
		feed:    NewFeedController(feed, rt.Store(), logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.events.RegisterRoutes(mux)
	r.feed.RegisterRoutes(mux)
}
