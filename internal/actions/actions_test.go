package actions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/router"
	"github.com/eigenein/myiot/pkg/log"
)

var ts = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func delivery(channel string, value any, unit event.Unit) router.Delivery {
	return router.Delivery{Event: event.New(channel, value, unit, event.WithTimestamp(ts), event.WithTitle("Hall"))}
}

func TestLog(t *testing.T) {
	logger, out := log.NewCapture()
	require.NoError(t, Log(logger)(context.Background(), delivery("c", 1, event.Celsius)))
	entries := out.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].Fields["channel"])
	assert.Equal(t, "Hall", entries[0].Fields["title"])
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type publishCall struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (p *fakePublisher) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	p.calls = append(p.calls, publishCall{topic: topic, payload: payload.([]byte)})
	return doneToken{err: p.err}
}

func TestMQTTPublish(t *testing.T) {
	p := &fakePublisher{}
	h := MQTTPublish(p, "myiot/{channel}", 1, true)
	require.NoError(t, h(context.Background(), delivery("nest:thermostat:t1:humidity", 40.5, event.RH)))
	require.Len(t, p.calls, 1)
	assert.Equal(t, "myiot/nest/thermostat/t1/humidity", p.calls[0].topic)
	assert.Equal(t, "40.5", string(p.calls[0].payload))

	p.err = errors.New("not connected")
	assert.Error(t, h(context.Background(), delivery("c", 1, event.Text)))
}

type fakeHash struct {
	key    string
	values []interface{}
}

func (f *fakeHash) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.key = key
	f.values = values
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func TestRedisActual(t *testing.T) {
	f := &fakeHash{}
	require.NoError(t, RedisActual(f, "")(context.Background(), delivery("c", true, event.Boolean)))
	assert.Equal(t, DefaultRedisKey, f.key)
	require.Len(t, f.values, 2)
	assert.Equal(t, "c", f.values[0])

	var e event.Event
	require.NoError(t, json.Unmarshal(f.values[1].([]byte), &e))
	assert.Equal(t, true, e.Value)
	assert.True(t, e.Timestamp.Equal(ts))
}

type fakePoints struct{ points []*write.Point }

func (f *fakePoints) WritePoint(_ context.Context, p ...*write.Point) error {
	f.points = append(f.points, p...)
	return nil
}

func TestInfluxWrite(t *testing.T) {
	f := &fakePoints{}
	h := InfluxWrite(f)
	require.NoError(t, h(context.Background(), delivery("t", 21, event.Celsius)))
	require.NoError(t, h(context.Background(), delivery("m", map[string]any{"a": 1}, event.Text)))
	require.Len(t, f.points, 1)

	p := f.points[0]
	assert.Equal(t, "t", p.Name())
	assert.True(t, p.Time().Equal(ts))
	require.Len(t, p.FieldList(), 1)
	assert.Equal(t, "value", p.FieldList()[0].Key)
	assert.Equal(t, 21.0, p.FieldList()[0].Value)
	require.Len(t, p.TagList(), 1)
	assert.Equal(t, "CELSIUS", p.TagList()[0].Value)
}

type fakeWriter struct{ msgs []kafka.Message }

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaForward(t *testing.T) {
	f := &fakeWriter{}
	require.NoError(t, KafkaForward(f)(context.Background(), delivery("door", "open", event.Enum)))
	require.Len(t, f.msgs, 1)
	assert.Equal(t, "door", string(f.msgs[0].Key))
	assert.Contains(t, string(f.msgs[0].Value), `"value":"open"`)
	assert.True(t, f.msgs[0].Time.Equal(ts))
}

func TestTelegram(t *testing.T) {
	var got url.Values
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, err := Telegram(TelegramOptions{Token: "T", ChatID: "42", BaseURL: srv.URL + "/bot%s/%s"})
	require.NoError(t, err)
	d := delivery("c", 21.5, event.Celsius)
	d.Client = srv.Client()
	require.NoError(t, h(context.Background(), d))
	assert.Equal(t, "/botT/sendMessage", path)
	assert.Equal(t, "42", got.Get("chat_id"))
	assert.Equal(t, "Hall: 21.5", got.Get("text"))
}

func TestTelegramAnimationAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/sendAnimation"))
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	h, err := Telegram(TelegramOptions{Token: "T", ChatID: "1", Animation: true, BaseURL: srv.URL + "/bot%s/%s"})
	require.NoError(t, err)
	err = h(context.Background(), delivery("cam", "http://gif", event.ImageURL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	_, err = Telegram(TelegramOptions{ChatID: "1"})
	assert.Error(t, err)
	_, err = Telegram(TelegramOptions{Token: "T", ChatID: "1", Template: "{{"})
	assert.Error(t, err)
}
