package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownService is returned for a service type no producer implements.
var ErrUnknownService = errors.New("unknown service type")

// ErrUnknownAction is returned for a rule action no handler implements.
var ErrUnknownAction = errors.New("unknown action")

// Service types.
const (
	ServiceClock      = "clock"
	ServiceFile       = "file"
	ServiceNest       = "nest"
	ServiceMQTT       = "mqtt"
	ServiceSysStat    = "sysstat"
	ServiceBuienradar = "buienradar"
)

// Rule actions.
const (
	ActionLog      = "log"
	ActionMQTT     = "mqtt"
	ActionRedis    = "redis"
	ActionInflux   = "influx"
	ActionKafka    = "kafka"
	ActionTelegram = "telegram"
)

var (
	serviceTypes = []string{ServiceClock, ServiceFile, ServiceNest, ServiceMQTT, ServiceSysStat, ServiceBuienradar}
	actionTypes  = []string{ActionLog, ActionMQTT, ActionRedis, ActionInflux, ActionKafka, ActionTelegram}
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir         string `json:"dataDir" yaml:"dataDir"`
	HTTPAddr        string `json:"httpAddr" yaml:"httpAddr"`
	Fsync           string `json:"fsync" yaml:"fsync"`
	FsyncIntervalMs int    `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`

	Log     LogConfig     `json:"log" yaml:"log"`
	Backoff BackoffConfig `json:"backoff" yaml:"backoff"`

	DrainTimeoutMs int `json:"drainTimeoutMs" yaml:"drainTimeoutMs"`
	HTTPTimeoutMs  int `json:"httpTimeoutMs" yaml:"httpTimeoutMs"`
	// LogRetention trims log entries older than this. Zero keeps everything.
	LogRetention Duration `json:"logRetention" yaml:"logRetention"`

	Services []ServiceConfig `json:"services" yaml:"services"`
	Rules    []RuleConfig    `json:"rules" yaml:"rules"`
	Sinks    SinksConfig     `json:"sinks" yaml:"sinks"`
}

// LogConfig mirrors pkg/log.Config.
type LogConfig struct {
	Level  string   `json:"level" yaml:"level"`
	Format string   `json:"format" yaml:"format"`
	Redact []string `json:"redact" yaml:"redact"`
}

// BackoffConfig controls service restart delays: unit * 2^min(errors, cap).
type BackoffConfig struct {
	UnitMs int `json:"unitMs" yaml:"unitMs"`
	Cap    int `json:"cap" yaml:"cap"`
}

// ServiceConfig describes one producer. Fields apply depending on Type.
type ServiceConfig struct {
	Type     string   `json:"type" yaml:"type"`
	Name     string   `json:"name" yaml:"name"`
	Title    string   `json:"title" yaml:"title"`
	Unit     string   `json:"unit" yaml:"unit"`
	Interval Duration `json:"interval" yaml:"interval"`

	// file
	Path  string  `json:"path" yaml:"path"`
	Float bool    `json:"float" yaml:"float"`
	Scale float64 `json:"scale" yaml:"scale"`

	// nest, buienradar
	Token     string `json:"token" yaml:"token"`
	URL       string `json:"url" yaml:"url"`
	StationID int    `json:"stationId" yaml:"stationId"`

	// mqtt
	Broker   string `json:"broker" yaml:"broker"`
	Topic    string `json:"topic" yaml:"topic"`
	QoS      byte   `json:"qos" yaml:"qos"`
	ClientID string `json:"clientId" yaml:"clientId"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	// sysstat
	Host     string `json:"host" yaml:"host"`
	DiskPath string `json:"diskPath" yaml:"diskPath"`
}

// RuleConfig routes matching events to an action. All conditions must hold.
type RuleConfig struct {
	Name string `json:"name" yaml:"name"`
	// When is a CEL expression over the delivery.
	When string `json:"when" yaml:"when"`
	// Channel is a regular expression matched against the whole channel.
	Channel   string `json:"channel" yaml:"channel"`
	IfChanged bool   `json:"ifChanged" yaml:"ifChanged"`
	IfNewer   bool   `json:"ifNewer" yaml:"ifNewer"`
	Action    string `json:"action" yaml:"action"`

	// action parameters
	Topic     string `json:"topic" yaml:"topic"`
	QoS       byte   `json:"qos" yaml:"qos"`
	Retained  bool   `json:"retained" yaml:"retained"`
	Key       string `json:"key" yaml:"key"`
	Template  string `json:"template" yaml:"template"`
	Animation bool   `json:"animation" yaml:"animation"`
	ChatID    string `json:"chatId" yaml:"chatId"`
}

// SinksConfig holds connection settings shared by rule actions.
type SinksConfig struct {
	MQTT     MQTTSink     `json:"mqtt" yaml:"mqtt"`
	Redis    RedisSink    `json:"redis" yaml:"redis"`
	Influx   InfluxSink   `json:"influx" yaml:"influx"`
	Kafka    KafkaSink    `json:"kafka" yaml:"kafka"`
	Telegram TelegramSink `json:"telegram" yaml:"telegram"`
}

type MQTTSink struct {
	Broker   string `json:"broker" yaml:"broker"`
	ClientID string `json:"clientId" yaml:"clientId"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

type RedisSink struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type InfluxSink struct {
	URL    string `json:"url" yaml:"url"`
	Token  string `json:"token" yaml:"token"`
	Org    string `json:"org" yaml:"org"`
	Bucket string `json:"bucket" yaml:"bucket"`
}

type KafkaSink struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type TelegramSink struct {
	Token  string `json:"token" yaml:"token"`
	ChatID string `json:"chatId" yaml:"chatId"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		HTTPAddr:        ":8080",
		Fsync:           "interval",
		FsyncIntervalMs: 5,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Redact: []string{"token", "password"},
		},
		Backoff:        BackoffConfig{UnitMs: 1000, Cap: 16},
		DrainTimeoutMs: 5000,
		HTTPTimeoutMs:  10000,
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate checks service types, rule actions and the settings they depend on.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Fsync) {
	case "", "always", "interval", "never":
	default:
		errs = append(errs, fmt.Errorf("fsync: invalid mode %q", c.Fsync))
	}
	for i, s := range c.Services {
		if !slices.Contains(serviceTypes, s.Type) {
			errs = append(errs, fmt.Errorf("services[%d]: %w: %q", i, ErrUnknownService, s.Type))
		}
	}
	for i, r := range c.Rules {
		if !slices.Contains(actionTypes, r.Action) {
			errs = append(errs, fmt.Errorf("rules[%d] %s: %w: %q", i, r.Name, ErrUnknownAction, r.Action))
			continue
		}
		if err := c.Sinks.check(r.Action); err != nil {
			errs = append(errs, fmt.Errorf("rules[%d] %s: %w", i, r.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s SinksConfig) check(action string) error {
	switch action {
	case ActionMQTT:
		if s.MQTT.Broker == "" {
			return errors.New("sinks.mqtt.broker is required")
		}
	case ActionRedis:
		if s.Redis.Addr == "" {
			return errors.New("sinks.redis.addr is required")
		}
	case ActionInflux:
		if s.Influx.URL == "" || s.Influx.Bucket == "" {
			return errors.New("sinks.influx.url and bucket are required")
		}
	case ActionKafka:
		if len(s.Kafka.Brokers) == 0 || s.Kafka.Topic == "" {
			return errors.New("sinks.kafka.brokers and topic are required")
		}
	case ActionTelegram:
		if s.Telegram.Token == "" {
			return errors.New("sinks.telegram.token is required")
		}
	}
	return nil
}
