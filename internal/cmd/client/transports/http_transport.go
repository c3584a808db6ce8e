package transports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/sse"
	"github.com/eigenein/myiot/pkg/log"
)

// HTTPTransport talks to the hub's JSON API.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	logger  log.Logger
}

// NewHTTPTransport creates a transport for baseURL. A nil client uses one
// without a total timeout so watches can stay open.
func NewHTTPTransport(baseURL string, client *http.Client, logger log.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &HTTPTransport{baseURL: baseURL, client: client, logger: logger}
}

func (t *HTTPTransport) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		_ = resp.Body.Close()
		if body.Error != "" {
			return nil, fmt.Errorf("http error: %s: %s", resp.Status, body.Error)
		}
		return nil, fmt.Errorf("http error: %s", resp.Status)
	}
	return resp, nil
}

func (t *HTTPTransport) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := t.get(ctx, path, query)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (t *HTTPTransport) Health(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := t.getJSON(ctx, "/v1/healthz", nil, &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return fmt.Errorf("unhealthy: %s", body.Status)
	}
	return nil
}

func (t *HTTPTransport) Actual(ctx context.Context) (map[string]event.Event, error) {
	var body struct {
		Actual map[string]event.Event `json:"actual"`
	}
	if err := t.getJSON(ctx, "/v1/actual", nil, &body); err != nil {
		return nil, err
	}
	return body.Actual, nil
}

func (t *HTTPTransport) ActualChannel(ctx context.Context, channel string) (event.Event, error) {
	var e event.Event
	err := t.getJSON(ctx, "/v1/actual/"+url.PathEscape(channel), nil, &e)
	return e, err
}

func (t *HTTPTransport) Channels(ctx context.Context) ([]string, error) {
	var body struct {
		Channels []string `json:"channels"`
	}
	if err := t.getJSON(ctx, "/v1/channels", nil, &body); err != nil {
		return nil, err
	}
	return body.Channels, nil
}

func (t *HTTPTransport) Log(ctx context.Context, q LogQuery) ([]event.LogEntry, error) {
	if q.Channel == "" {
		return nil, errors.New("channel is required")
	}
	v := url.Values{"channel": {q.Channel}}
	if q.Period > 0 {
		v.Set("period", q.Period.String())
	}
	if !q.Since.IsZero() {
		v.Set("since", q.Since.UTC().Format(time.RFC3339Nano))
	}
	if !q.Until.IsZero() {
		v.Set("until", q.Until.UTC().Format(time.RFC3339Nano))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	var body struct {
		Entries []event.LogEntry `json:"entries"`
	}
	if err := t.getJSON(ctx, "/v1/log", v, &body); err != nil {
		return nil, err
	}
	return body.Entries, nil
}

// Watch follows the live feed until ctx is done, the server closes the
// stream, onEvent fails or the limit is reached.
func (t *HTTPTransport) Watch(ctx context.Context, req WatchRequest, onEvent func(record string, e event.Event) error) error {
	v := url.Values{}
	if req.Snapshot {
		v.Set("snapshot", "1")
	}
	resp, err := t.get(ctx, "/v1/events", v)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	n := 0
	for rec, err := range sse.Records(ctx, resp.Body, t.logger) {
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		var e event.Event
		if err := json.Unmarshal([]byte(rec.Data), &e); err != nil {
			t.logger.Warn("undecodable feed record", log.Str("record", rec.Name), log.Err(err))
			continue
		}
		if err := onEvent(rec.Name, e); err != nil {
			return err
		}
		n++
		if req.Limit > 0 && n >= req.Limit {
			return nil
		}
	}
	return nil
}
