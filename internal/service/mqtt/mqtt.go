// Package mqtt turns messages of an MQTT subscription into events.
package mqtt

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/service"
	"github.com/eigenein/myiot/pkg/log"
)

// Options configures the subscriber.
type Options struct {
	Broker   string
	Topic    string
	QoS      byte
	ClientID string
	Username string
	Password string
	// Unit applies to every message. Numeric payloads are parsed as float64
	// regardless of the unit.
	Unit   event.Unit
	Title  string
	Logger log.Logger
	// ConnectTimeout bounds the initial connection. Defaults to 10s.
	ConnectTimeout time.Duration
}

// Subscriber is a Service backed by a paho client. A new client is created
// for every call to Events.
type Subscriber struct {
	opts   Options
	logger log.Logger

	mu     sync.Mutex
	client paho.Client
	closed bool

	newClient func(*paho.ClientOptions) paho.Client
}

func New(opts Options) *Subscriber {
	if opts.ClientID == "" {
		opts.ClientID = "myiot-" + uuid.NewString()
	}
	if opts.Unit == "" {
		opts.Unit = event.Text
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	s := &Subscriber{opts: opts, newClient: paho.NewClient}
	s.logger = opts.Logger.With(log.Str("service", s.String()))
	return s
}

func (s *Subscriber) String() string {
	return fmt.Sprintf("MQTT(broker=%q, topic=%q)", s.opts.Broker, s.opts.Topic)
}

type message struct {
	topic   string
	payload []byte
}

func (s *Subscriber) Events(ctx context.Context) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		messages := make(chan message, 64)
		lost := make(chan error, 1)

		opts := paho.NewClientOptions().
			AddBroker(s.opts.Broker).
			SetClientID(s.opts.ClientID).
			SetCleanSession(true).
			SetKeepAlive(30 * time.Second).
			SetPingTimeout(10 * time.Second).
			SetAutoReconnect(false).
			SetConnectTimeout(s.opts.ConnectTimeout)
		if s.opts.Username != "" {
			opts.SetUsername(s.opts.Username)
		}
		if s.opts.Password != "" {
			opts.SetPassword(s.opts.Password)
		}
		opts.OnConnectionLost = func(_ paho.Client, err error) {
			select {
			case lost <- err:
			default:
			}
		}

		client := s.newClient(opts)
		if !s.track(client) {
			return
		}
		defer s.untrack(client)

		if err := wait(ctx, client.Connect()); err != nil {
			if ctx.Err() == nil {
				yield(event.Event{}, service.Connectivity(fmt.Errorf("mqtt connect: %w", err)))
			}
			return
		}
		handler := func(_ paho.Client, m paho.Message) {
			select {
			case messages <- message{topic: m.Topic(), payload: m.Payload()}:
			case <-ctx.Done():
			}
		}
		if err := wait(ctx, client.Subscribe(s.opts.Topic, s.opts.QoS, handler)); err != nil {
			if ctx.Err() == nil {
				yield(event.Event{}, fmt.Errorf("mqtt subscribe %s: %w", s.opts.Topic, err))
			}
			return
		}
		s.logger.Info("subscribed", log.Int("qos", int(s.opts.QoS)))

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-lost:
				yield(event.Event{}, service.Connectivity(fmt.Errorf("mqtt connection lost: %w", err)))
				return
			case m := <-messages:
				if !yield(s.toEvent(m), nil) {
					return
				}
			}
		}
	}
}

func (s *Subscriber) toEvent(m message) event.Event {
	return event.New("mqtt:"+m.topic, ParsePayload(m.payload), s.opts.Unit, event.WithTitle(s.opts.Title))
}

// ParsePayload returns a float64 for numeric payloads, a bool for true/false
// and the trimmed text otherwise.
func ParsePayload(payload []byte) any {
	text := strings.TrimSpace(string(payload))
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(text); err == nil && (text == "true" || text == "false") {
		return b
	}
	return text
}

func wait(ctx context.Context, t paho.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Done():
		return t.Error()
	}
}

func (s *Subscriber) track(c paho.Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.client = c
	return true
}

func (s *Subscriber) untrack(c paho.Client) {
	s.mu.Lock()
	if s.client == c {
		s.client = nil
	}
	s.mu.Unlock()
	if c.IsConnected() {
		c.Disconnect(250)
	}
}

// Close disconnects the active client.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}
