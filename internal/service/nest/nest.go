// Package nest streams device state from the Nest REST streaming API.
package nest

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"sync"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/service"
	"github.com/eigenein/myiot/internal/sse"
	"github.com/eigenein/myiot/pkg/log"
)

// DefaultURL is the Nest streaming endpoint.
const DefaultURL = "https://developer-api.nest.com"

// Options configures the Nest service.
type Options struct {
	Token string
	// URL defaults to DefaultURL.
	URL string
	// Client must not carry a whole-request timeout since the response body
	// is an endless stream. Defaults to a client without timeout.
	Client *http.Client
	Logger log.Logger
}

// Nest yields one event per device attribute on every "put" record.
type Nest struct {
	opts   Options
	logger log.Logger

	mu     sync.Mutex
	body   interface{ Close() error }
	closed bool
}

func New(opts Options) *Nest {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	n := &Nest{opts: opts}
	n.logger = opts.Logger.With(log.Str("service", n.String()))
	return n
}

func (n *Nest) String() string {
	return fmt.Sprintf("Nest(token=%q)", redact(n.opts.Token))
}

func redact(token string) string {
	if len(token) <= 8 {
		return "…"
	}
	return token[:4] + "…" + token[len(token)-4:]
}

func (n *Nest) Events(ctx context.Context) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		u, err := url.Parse(n.opts.URL)
		if err != nil {
			yield(event.Event{}, fmt.Errorf("nest url: %w", err))
			return
		}
		q := u.Query()
		q.Set("auth", n.opts.Token)
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			yield(event.Event{}, err)
			return
		}
		req.Header.Set("Accept", "text/event-stream")

		n.logger.Debug("listening to the stream")
		resp, err := n.opts.Client.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				yield(event.Event{}, service.Connectivity(err))
			}
			return
		}
		if !n.track(resp) {
			_ = resp.Body.Close()
			return
		}
		defer n.untrack(resp)

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("nest stream: unexpected status %s", resp.Status)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				err = service.Connectivity(err)
			}
			yield(event.Event{}, err)
			return
		}

		for rec, err := range sse.Records(ctx, resp.Body, n.logger) {
			if err != nil {
				if ctx.Err() == nil {
					yield(event.Event{}, service.Connectivity(err))
				}
				return
			}
			if rec.Name != "put" {
				n.logger.Debug("ignoring record", log.Str("name", rec.Name))
				continue
			}
			events, err := Translate([]byte(rec.Data))
			if err != nil {
				yield(event.Event{}, err)
				return
			}
			for _, e := range events {
				if !yield(e, nil) {
					return
				}
			}
		}
	}
}

func (n *Nest) track(resp *http.Response) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return false
	}
	n.body = resp.Body
	return true
}

func (n *Nest) untrack(resp *http.Response) {
	n.mu.Lock()
	if n.body == resp.Body {
		n.body = nil
	}
	n.mu.Unlock()
	_ = resp.Body.Close()
}

// Close aborts the current stream, if any. Further calls to Events end immediately.
func (n *Nest) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	if n.body != nil {
		return n.body.Close()
	}
	return nil
}
