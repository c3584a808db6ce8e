// Package actions provides router handlers that forward events to external
// systems: logs, MQTT, Redis, InfluxDB, Kafka and Telegram.
//
// Every constructor takes the narrowest client interface it needs so that the
// concrete clients (paho, go-redis, influxdb-client-go, kafka-go) can be
// swapped for fakes in tests.
package actions
