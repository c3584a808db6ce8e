package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays MYIOT_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("MYIOT_DATA_DIR", &cfg.DataDir)
	str("MYIOT_HTTP_ADDR", &cfg.HTTPAddr)
	str("MYIOT_FSYNC", &cfg.Fsync)
	num("MYIOT_FSYNC_INTERVAL_MS", &cfg.FsyncIntervalMs)
	str("MYIOT_LOG_LEVEL", &cfg.Log.Level)
	str("MYIOT_LOG_FORMAT", &cfg.Log.Format)
	num("MYIOT_BACKOFF_UNIT_MS", &cfg.Backoff.UnitMs)
	num("MYIOT_BACKOFF_CAP", &cfg.Backoff.Cap)
	num("MYIOT_DRAIN_TIMEOUT_MS", &cfg.DrainTimeoutMs)
	num("MYIOT_HTTP_TIMEOUT_MS", &cfg.HTTPTimeoutMs)
	if v := os.Getenv("MYIOT_LOG_RETENTION"); v != "" {
		var d Duration
		if d.parse(v) == nil {
			cfg.LogRetention = d
		}
	}

	str("MYIOT_MQTT_BROKER", &cfg.Sinks.MQTT.Broker)
	str("MYIOT_MQTT_USERNAME", &cfg.Sinks.MQTT.Username)
	str("MYIOT_MQTT_PASSWORD", &cfg.Sinks.MQTT.Password)
	str("MYIOT_REDIS_ADDR", &cfg.Sinks.Redis.Addr)
	str("MYIOT_REDIS_PASSWORD", &cfg.Sinks.Redis.Password)
	num("MYIOT_REDIS_DB", &cfg.Sinks.Redis.DB)
	str("MYIOT_INFLUX_URL", &cfg.Sinks.Influx.URL)
	str("MYIOT_INFLUX_TOKEN", &cfg.Sinks.Influx.Token)
	str("MYIOT_INFLUX_ORG", &cfg.Sinks.Influx.Org)
	str("MYIOT_INFLUX_BUCKET", &cfg.Sinks.Influx.Bucket)
	str("MYIOT_KAFKA_TOPIC", &cfg.Sinks.Kafka.Topic)
	if v := os.Getenv("MYIOT_KAFKA_BROKERS"); v != "" {
		cfg.Sinks.Kafka.Brokers = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Sinks.Kafka.Brokers = append(cfg.Sinks.Kafka.Brokers, p)
			}
		}
	}
	str("MYIOT_TELEGRAM_TOKEN", &cfg.Sinks.Telegram.Token)
	str("MYIOT_TELEGRAM_CHAT_ID", &cfg.Sinks.Telegram.ChatID)
}
