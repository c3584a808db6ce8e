package nest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/service"
)

const putPayload = `{"path":"/","data":{
  "structures":{"s1":{"name":"Home","away":"home","wwn_security_state":"ok"}},
  "devices":{
    "thermostats":{"t1":{"name":"Hall","ambient_temperature_c":21.5,"humidity":40,"is_online":true,"hvac_state":"off","target_temperature_c":20}},
    "cameras":{"c1":{"name":"Door","is_streaming":true,"is_online":true,"snapshot_url":"http://snap",
      "last_event":{"animated_image_url":"http://gif","start_time":"2016-12-29T00:00:00.000Z"}}},
    "smoke_co_alarms":{"a1":{"name":"Kitchen","is_online":false}}
  }}}`

func TestTranslate(t *testing.T) {
	events, err := Translate([]byte(putPayload))
	require.NoError(t, err)

	byChannel := map[string]event.Event{}
	for _, e := range events {
		byChannel[e.Channel] = e
	}
	require.Len(t, byChannel, 2+3+5+1+1)

	temp := byChannel["nest:thermostat:t1:ambient_temperature_c"]
	assert.Equal(t, 21.5, temp.Value)
	assert.Equal(t, event.Celsius, temp.Unit)
	assert.Equal(t, "Hall Ambient Temperature", temp.Title)

	assert.Equal(t, "home", byChannel["nest:structure:s1:away"].Value)
	assert.Equal(t, false, byChannel["nest:smoke_co_alarm:a1:is_online"].Value)

	snap := byChannel["nest:camera:c1:snapshot_url"]
	assert.Equal(t, event.ImageURL, snap.Unit)
	assert.False(t, snap.IsLogged())

	last := byChannel["nest:camera:c1:last_animated_image_url"]
	assert.Equal(t, "http://gif", last.Value)
	assert.Equal(t, "Door Last Event", last.Title)
	assert.True(t, last.Timestamp.Equal(time.Date(2016, 12, 29, 0, 0, 0, 0, time.UTC)))
}

func TestTranslateRejectsGarbage(t *testing.T) {
	_, err := Translate([]byte("{"))
	assert.Error(t, err)
}

func TestEventsFromStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-token", r.URL.Query().Get("auth"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: keep-alive\ndata: null\n\n")
		fmt.Fprint(w, "event: put\ndata: {\"data\":{\"structures\":{\"s1\":{\"name\":\"Home\",\"away\":\"away\"}}}}\n\n")
	}))
	defer srv.Close()

	n := New(Options{Token: "secret-token", URL: srv.URL})
	defer n.Close()

	var got []event.Event
	for e, err := range n.Events(context.Background()) {
		require.NoError(t, err)
		got = append(got, e)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "nest:structure:s1:away", got[0].Channel)
	assert.Equal(t, "away", got[0].Value)
}

func TestEventsServerErrorIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	var errs []error
	for _, err := range New(Options{Token: "x", URL: srv.URL}).Events(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.True(t, service.IsConnectivity(errs[0]))
}

func TestStringRedactsToken(t *testing.T) {
	n := New(Options{Token: "abcd1234567890wxyz"})
	assert.Equal(t, `Nest(token="abcd…wxyz")`, n.String())
	assert.NotContains(t, New(Options{Token: "short"}).String(), "short")
}

func TestCloseIsIdempotent(t *testing.T) {
	n := New(Options{Token: "x"})
	assert.NoError(t, n.Close())
	assert.NoError(t, n.Close())
}
