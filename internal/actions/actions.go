package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/eigenein/myiot/internal/router"
	"github.com/eigenein/myiot/pkg/log"
)

// Log writes every delivery to logger at info level.
func Log(logger log.Logger) router.Handler {
	return func(_ context.Context, d router.Delivery) error {
		logger.Info("event",
			log.Str("channel", d.Event.Channel),
			log.Any("value", d.Event.Value),
			log.Str("unit", string(d.Event.Unit)),
			log.Str("title", d.Event.DisplayTitle()),
		)
		return nil
	}
}

// Publisher is the part of paho.Client used by MQTTPublish.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// MQTTPublish publishes the JSON-encoded value. A "{channel}" placeholder in
// topic is replaced by the channel with ':' mapped to '/'.
func MQTTPublish(p Publisher, topic string, qos byte, retained bool) router.Handler {
	return func(ctx context.Context, d router.Delivery) error {
		payload, err := json.Marshal(d.Event.Value)
		if err != nil {
			return fmt.Errorf("encode value: %w", err)
		}
		t := strings.ReplaceAll(topic, "{channel}", strings.ReplaceAll(d.Event.Channel, ":", "/"))
		token := p.Publish(t, qos, retained, payload)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-token.Done():
			return token.Error()
		}
	}
}

// HashSetter is the part of redis.Cmdable used by RedisActual.
type HashSetter interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// DefaultRedisKey is the hash that mirrors the actual projection.
const DefaultRedisKey = "myiot:actual"

// RedisActual mirrors the actual value of each channel into a Redis hash as
// field channel, value JSON event.
func RedisActual(client HashSetter, key string) router.Handler {
	if key == "" {
		key = DefaultRedisKey
	}
	return func(ctx context.Context, d router.Delivery) error {
		data, err := json.Marshal(d.Event)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		return client.HSet(ctx, key, d.Event.Channel, data).Err()
	}
}

// PointWriter is the part of api.WriteAPIBlocking used by InfluxWrite.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxWrite stores numeric, boolean and text values as points with the
// channel as measurement. Other values are skipped.
func InfluxWrite(w PointWriter) router.Handler {
	return func(ctx context.Context, d router.Delivery) error {
		p, ok := Point(d)
		if !ok {
			return nil
		}
		return w.WritePoint(ctx, p)
	}
}

// Point builds the InfluxDB point for a delivery.
func Point(d router.Delivery) (*write.Point, bool) {
	var value any
	switch v := d.Event.Value.(type) {
	case float64, float32, bool, string:
		value = v
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		value = f
	default:
		return nil, false
	}
	tags := map[string]string{}
	if d.Event.Unit != "" {
		tags["unit"] = string(d.Event.Unit)
	}
	ts := d.Event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(d.Event.Channel, tags, map[string]interface{}{"value": value}, ts), true
}

// MessageWriter is the part of *kafka.Writer used by KafkaForward.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaForward writes the JSON event keyed by channel, so one channel always
// lands in one partition with the hash balancer.
func KafkaForward(w MessageWriter) router.Handler {
	return func(ctx context.Context, d router.Delivery) error {
		data, err := json.Marshal(d.Event)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		return w.WriteMessages(ctx, kafka.Message{
			Key:   []byte(d.Event.Channel),
			Value: data,
			Time:  d.Event.Timestamp,
		})
	}
}
