package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/store"
)

// DefaultLogPeriod is used when /v1/log is called without a period.
const DefaultLogPeriod = 24 * time.Hour

// Reader is the read side of the event store.
type Reader interface {
	GetActual() map[string]event.Event
	Actual(channel string) (event.Event, error)
	GetLogRange(ctx context.Context, channel string, since, until time.Time, limit int) ([]event.LogEntry, error)
}

// EventsController serves the actual and log projections.
type EventsController struct {
	store Reader
	now   func() time.Time
}

// NewEventsController creates a controller over the store's projections.
func NewEventsController(st Reader) *EventsController {
	return &EventsController{store: st, now: time.Now}
}

// RegisterRoutes registers the projection routes with the given mux.
func (c *EventsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/actual", c.handleActual)
	mux.HandleFunc("GET /v1/actual/{channel}", c.handleActualChannel)
	mux.HandleFunc("GET /v1/log", c.handleLog)
}

func (c *EventsController) handleActual(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"actual": c.store.GetActual()})
}

func (c *EventsController) handleActualChannel(w http.ResponseWriter, r *http.Request) {
	e, err := c.store.Actual(r.PathValue("channel"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read actual value")
		return
	}
	writeJSON(w, e)
}

// handleLog returns entries of one channel.
//
// Query parameters: channel (required), period (duration or seconds, default
// 24h), since/until (RFC3339 or Unix ms, override period) and limit.
func (c *EventsController) handleLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	channel := q.Get("channel")
	if channel == "" {
		writeError(w, http.StatusBadRequest, "channel is required")
		return
	}
	period, ok := parsePeriod(q.Get("period"), DefaultLogPeriod)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid period")
		return
	}
	since := parseTimestamp(q.Get("since"))
	if since.IsZero() {
		since = c.now().Add(-period)
	}
	until := parseTimestamp(q.Get("until"))
	entries, err := c.store.GetLogRange(r.Context(), channel, since, until, parseLimit(q.Get("limit")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read log")
		return
	}
	if entries == nil {
		entries = []event.LogEntry{}
	}
	writeJSON(w, map[string]any{"channel": channel, "entries": entries})
}
