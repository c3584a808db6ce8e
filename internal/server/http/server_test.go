package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/eigenein/myiot/internal/config"
	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/runtime"
	"github.com/eigenein/myiot/internal/sse"
	pebblestore "github.com/eigenein/myiot/internal/storage/pebble"
	logpkg "github.com/eigenein/myiot/pkg/log"
)

func newTestServer(t *testing.T) (*Server, *runtime.Runtime) {
	t.Helper()
	rt, err := runtime.Open(context.Background(), runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	return New(rt, logger), rt
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	s, rt := newTestServer(t)
	w := serve(s, http.MethodGet, "/v1/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, rt.Close())
	w = serve(s, http.MethodGet, "/v1/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestActualAndChannels(t *testing.T) {
	s, rt := newTestServer(t)
	ctx := context.Background()
	_, err := rt.Store().SaveEvent(ctx, event.New("clock:a", 1, event.Text))
	require.NoError(t, err)
	_, err = rt.Store().SaveEvent(ctx, event.New("temp:b", 21.5, event.Celsius))
	require.NoError(t, err)

	w := serve(s, http.MethodGet, "/v1/channels")
	require.Equal(t, http.StatusOK, w.Code)
	var channels struct {
		Channels []string `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &channels))
	assert.Equal(t, []string{"clock:a", "temp:b"}, channels.Channels)

	w = serve(s, http.MethodGet, "/v1/actual")
	require.Equal(t, http.StatusOK, w.Code)
	var actual struct {
		Actual map[string]event.Event `json:"actual"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actual))
	assert.Len(t, actual.Actual, 2)
	assert.Equal(t, 21.5, actual.Actual["temp:b"].Value)

	w = serve(s, http.MethodGet, "/v1/actual/temp:b")
	require.Equal(t, http.StatusOK, w.Code)
	var one event.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, event.Celsius, one.Unit)

	w = serve(s, http.MethodGet, "/v1/actual/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogHandler(t *testing.T) {
	s, rt := newTestServer(t)
	ctx := context.Background()
	now := time.Now()
	for i, age := range []time.Duration{3 * time.Hour, time.Hour, time.Minute} {
		_, err := rt.Store().SaveEvent(ctx, event.New("temp:b", float64(i), event.Celsius, event.WithTimestamp(now.Add(-age))))
		require.NoError(t, err)
	}

	type logResp struct {
		Channel string           `json:"channel"`
		Entries []event.LogEntry `json:"entries"`
	}
	w := serve(s, http.MethodGet, "/v1/log?channel=temp:b&period=2h")
	require.Equal(t, http.StatusOK, w.Code)
	var resp logResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, 1.0, resp.Entries[0].Value)
	assert.Equal(t, 2.0, resp.Entries[1].Value)

	w = serve(s, http.MethodGet, "/v1/log?channel=temp:b&period=14400&limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	resp = logResp{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, 0.0, resp.Entries[0].Value)

	w = serve(s, http.MethodGet, "/v1/log?channel=nothing")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"channel":"nothing","entries":[]}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/v1/log").Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/v1/log?channel=x&period=soon").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(s, http.MethodPost, "/v1/actual").Code)
	assert.Equal(t, http.StatusNoContent, serve(s, http.MethodOptions, "/v1/actual").Code)
}

func TestEventsFeed(t *testing.T) {
	s, rt := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := rt.Store().SaveEvent(ctx, event.New("temp:b", 20.0, event.Celsius))
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events?snapshot=1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	p := sse.NewParser(resp.Body, nil)
	rec, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "actual", rec.Name)

	require.Eventually(t, func() bool { return s.Feed().Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	s.Feed().Publish(event.New("clock:a", 3, event.Text))

	rec, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, "event", rec.Name)
	assert.Len(t, rec.ID, 20)
	var got event.Event
	require.NoError(t, json.Unmarshal([]byte(rec.Data), &got))
	assert.Equal(t, "clock:a", got.Channel)
	assert.Equal(t, 3.0, got.Value)

	cancel()
	require.Eventually(t, func() bool { return s.Feed().Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	require.Eventually(t, func() bool { return s.Addr() != nil }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
