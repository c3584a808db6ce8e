package automation

import (
	"fmt"
	"net/http"
	"time"

	"github.com/eigenein/myiot/internal/config"
	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/service"
	"github.com/eigenein/myiot/internal/service/buienradar"
	"github.com/eigenein/myiot/internal/service/clock"
	"github.com/eigenein/myiot/internal/service/file"
	"github.com/eigenein/myiot/internal/service/mqtt"
	"github.com/eigenein/myiot/internal/service/nest"
	"github.com/eigenein/myiot/internal/service/sysstat"
	"github.com/eigenein/myiot/pkg/log"
)

// DefaultPeriod is the polling interval of services that do not set one.
const DefaultPeriod = 5 * time.Minute

// BuildServices instantiates every configured producer. client serves
// request/response producers; streaming producers get a client without a
// whole-request timeout sharing its transport.
func BuildServices(cfgs []config.ServiceConfig, client *http.Client, logger log.Logger) ([]service.Service, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	streaming := &http.Client{Transport: client.Transport}

	out := make([]service.Service, 0, len(cfgs))
	for i, c := range cfgs {
		svc, err := buildService(c, client, streaming, logger)
		if err != nil {
			return nil, fmt.Errorf("services[%d]: %w", i, err)
		}
		out = append(out, svc)
	}
	return out, nil
}

func buildService(c config.ServiceConfig, client, streaming *http.Client, logger log.Logger) (service.Service, error) {
	unit := event.Unit(c.Unit)
	if !unit.Valid() {
		return nil, fmt.Errorf("unknown unit %q", c.Unit)
	}
	switch c.Type {
	case config.ServiceClock:
		return clock.New(clock.Options{Name: c.Name, Interval: c.Interval.Or(time.Minute), Title: c.Title}), nil
	case config.ServiceFile:
		if c.Path == "" {
			return nil, fmt.Errorf("file %q: path is required", c.Name)
		}
		return file.New(file.Options{
			Name:     c.Name,
			Path:     c.Path,
			Interval: c.Interval.Or(DefaultPeriod),
			Unit:     unit,
			Title:    c.Title,
			Float:    c.Float,
			Scale:    c.Scale,
			Logger:   logger,
		}), nil
	case config.ServiceNest:
		if c.Token == "" {
			return nil, fmt.Errorf("nest: token is required")
		}
		return nest.New(nest.Options{Token: c.Token, URL: c.URL, Client: streaming, Logger: logger}), nil
	case config.ServiceMQTT:
		if c.Broker == "" || c.Topic == "" {
			return nil, fmt.Errorf("mqtt: broker and topic are required")
		}
		return mqtt.New(mqtt.Options{
			Broker:   c.Broker,
			Topic:    c.Topic,
			QoS:      c.QoS,
			ClientID: c.ClientID,
			Username: c.Username,
			Password: c.Password,
			Unit:     unit,
			Title:    c.Title,
			Logger:   logger,
		}), nil
	case config.ServiceSysStat:
		return sysstat.New(sysstat.Options{Host: c.Host, Interval: c.Interval.Or(time.Minute), DiskPath: c.DiskPath, Logger: logger}), nil
	case config.ServiceBuienradar:
		if c.StationID == 0 {
			return nil, fmt.Errorf("buienradar: stationId is required")
		}
		return buienradar.New(buienradar.Options{
			StationID: c.StationID,
			Interval:  c.Interval.Or(DefaultPeriod),
			URL:       c.URL,
			Client:    client,
			Logger:    logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownService, c.Type)
	}
}
