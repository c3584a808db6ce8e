package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/store"
	"github.com/eigenein/myiot/pkg/log"
)

// SSE record names written by the feed.
const (
	RecordEvent  = "event"
	RecordActual = "actual"
)

// DefaultHeartbeat is the interval of keep-alive comments on idle feeds.
const DefaultHeartbeat = 15 * time.Second

// sseSink formats events as Server-Sent Events records.
type sseSink struct {
	w http.ResponseWriter
	r *http.Request
}

// Send writes one record: the name, the timestamp key as id and the JSON
// encoded event as data.
func (s sseSink) Send(name string, e event.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	rec := "event: " + name + "\nid: " + store.TimestampKey(e.Timestamp) + "\ndata: "
	if _, err := s.w.Write([]byte(rec)); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	return nil
}

// Comment writes an SSE comment line, ignored by clients.
func (s sseSink) Comment(text string) error {
	_, err := s.w.Write([]byte(": " + text + "\n\n"))
	return err
}

// Context returns the request context for cancellation.
func (s sseSink) Context() context.Context {
	return s.r.Context()
}

// Flush flushes the HTTP response writer if it supports flushing.
func (s sseSink) Flush() error {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// FeedController serves the live event feed.
type FeedController struct {
	feed      *Feed
	store     Reader
	logger    log.Logger
	heartbeat time.Duration
}

// NewFeedController creates the live feed controller.
func NewFeedController(feed *Feed, st Reader, logger log.Logger) *FeedController {
	if logger == nil {
		logger = log.NewNop()
	}
	return &FeedController{feed: feed, store: st, logger: logger, heartbeat: DefaultHeartbeat}
}

// RegisterRoutes registers the feed route with the given mux.
func (c *FeedController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/events", c.handleEvents)
}

// handleEvents streams dispatched events until the client goes away. With
// snapshot=1 the current actual values are sent first as "actual" records.
func (c *FeedController) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, cancel := c.feed.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	sink := sseSink{w: w, r: r}
	if err := sink.Comment("connected"); err != nil {
		return
	}
	if parseBool(r.URL.Query().Get("snapshot")) {
		for _, e := range c.store.GetActual() {
			if err := sink.Send(RecordActual, e); err != nil {
				return
			}
		}
	}
	_ = sink.Flush()

	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-sink.Context().Done():
			return
		case <-ticker.C:
			if err := sink.Comment("heartbeat"); err != nil {
				return
			}
		case e := <-events:
			if err := sink.Send(RecordEvent, e); err != nil {
				c.logger.Debug("feed client write failed", log.Err(err))
				return
			}
		}
		_ = sink.Flush()
	}
}
