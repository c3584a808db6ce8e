package automation

import (
	"errors"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/eigenein/myiot/internal/actions"
	"github.com/eigenein/myiot/internal/config"
	"github.com/eigenein/myiot/pkg/log"
)

// Sinks lazily creates one client per external system and shares it among
// all rules that use it.
type Sinks struct {
	cfg    config.SinksConfig
	logger log.Logger

	mu      sync.Mutex
	mqtt    actions.Publisher
	redis   actions.HashSetter
	influx  actions.PointWriter
	kafka   actions.MessageWriter
	closers []func() error
}

func NewSinks(cfg config.SinksConfig, logger log.Logger) *Sinks {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Sinks{cfg: cfg, logger: logger.WithComponent("sinks")}
}

// MQTT returns a client that keeps reconnecting in the background, so
// publishing before the broker is reachable waits instead of failing.
func (s *Sinks) MQTT() actions.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mqtt != nil {
		return s.mqtt
	}
	c := s.cfg.MQTT
	clientID := c.ClientID
	if clientID == "" {
		clientID = "myiot-sink-" + uuid.NewString()
	}
	opts := paho.NewClientOptions().
		AddBroker(c.Broker).
		SetClientID(clientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if c.Username != "" {
		opts.SetUsername(c.Username)
	}
	if c.Password != "" {
		opts.SetPassword(c.Password)
	}
	logger := s.logger
	opts.OnConnect = func(paho.Client) { logger.Info("mqtt sink connected", log.Str("broker", c.Broker)) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { logger.Warn("mqtt sink connection lost", log.Err(err)) }

	client := paho.NewClient(opts)
	client.Connect()
	s.mqtt = client
	s.closers = append(s.closers, func() error {
		client.Disconnect(250)
		return nil
	})
	return s.mqtt
}

func (s *Sinks) Redis() actions.HashSetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redis == nil {
		client := redis.NewClient(&redis.Options{
			Addr:     s.cfg.Redis.Addr,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
		})
		s.redis = client
		s.closers = append(s.closers, client.Close)
	}
	return s.redis
}

func (s *Sinks) Influx() actions.PointWriter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.influx == nil {
		client := influxdb2.NewClient(s.cfg.Influx.URL, s.cfg.Influx.Token)
		s.influx = client.WriteAPIBlocking(s.cfg.Influx.Org, s.cfg.Influx.Bucket)
		s.closers = append(s.closers, func() error {
			client.Close()
			return nil
		})
	}
	return s.influx
}

func (s *Sinks) Kafka() actions.MessageWriter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kafka == nil {
		w := &kafka.Writer{
			Addr:         kafka.TCP(s.cfg.Kafka.Brokers...),
			Topic:        s.cfg.Kafka.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		}
		s.kafka = w
		s.closers = append(s.closers, w.Close)
	}
	return s.kafka
}

// Close releases every client created so far.
func (s *Sinks) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
