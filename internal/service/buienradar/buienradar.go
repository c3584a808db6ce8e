// Package buienradar polls the public Buienradar weather feed.
package buienradar

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/service"
	"github.com/eigenein/myiot/pkg/log"
)

// DefaultURL is the public JSON feed.
const DefaultURL = "https://api.buienradar.nl/data/public/2.0/jsonfeed"

const timestampLayout = "2006-01-02T15:04:05"

var measurements = []struct {
	source string
	target string
	unit   event.Unit
}{
	{"airpressure", "air_pressure", event.HPa},
	{"feeltemperature", "feel_temperature", event.Celsius},
	{"groundtemperature", "ground_temperature", event.Celsius},
	{"humidity", "humidity", event.RH},
	{"temperature", "temperature", event.Celsius},
	{"winddirection", "wind_direction", event.Enum},
	{"windspeed", "wind_speed", event.MPS},
	{"windspeedBft", "wind_speed_bft", event.Beaufort},
	{"sunpower", "sun_power", event.Watt},
}

// Options configures the poller.
type Options struct {
	StationID int
	Interval  time.Duration
	URL       string
	Client    *http.Client
	Logger    log.Logger
	// Location interprets the feed's zone-less timestamps. Defaults to time.Local.
	Location *time.Location
}

// Buienradar yields sun times and the measurements of one station.
type Buienradar struct {
	opts   Options
	logger log.Logger
}

func New(opts Options) *Buienradar {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	b := &Buienradar{opts: opts}
	b.logger = opts.Logger.With(log.Str("service", b.String()))
	return b
}

func (b *Buienradar) String() string {
	return fmt.Sprintf("Buienradar(station_id=%d)", b.opts.StationID)
}

type feed struct {
	Actual struct {
		Sunrise             string           `json:"sunrise"`
		Sunset              string           `json:"sunset"`
		StationMeasurements []map[string]any `json:"stationmeasurements"`
	} `json:"actual"`
}

func (b *Buienradar) Events(ctx context.Context) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		for {
			f, err := b.fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					yield(event.Event{}, err)
				}
				return
			}
			events, err := b.translate(f)
			if err != nil {
				yield(event.Event{}, err)
				return
			}
			for _, e := range events {
				if !yield(e, nil) {
					return
				}
			}
			b.logger.Debug("next reading scheduled", log.Dur("interval", b.opts.Interval))
			if service.Sleep(ctx, b.opts.Interval) != nil {
				return
			}
		}
	}
}

func (b *Buienradar) fetch(ctx context.Context) (*feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := b.opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, service.Connectivity(fmt.Errorf("buienradar: unexpected status %s", resp.Status))
	}
	var f feed
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode buienradar feed: %w", err)
	}
	return &f, nil
}

func (b *Buienradar) parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, b.opts.Location)
}

func (b *Buienradar) translate(f *feed) ([]event.Event, error) {
	sunrise, err := b.parseTime(f.Actual.Sunrise)
	if err != nil {
		return nil, fmt.Errorf("sunrise: %w", err)
	}
	sunset, err := b.parseTime(f.Actual.Sunset)
	if err != nil {
		return nil, fmt.Errorf("sunset: %w", err)
	}
	out := []event.Event{
		event.New("buienradar:sunrise", sunrise.Format(time.RFC3339), event.Datetime, event.WithTitle("Sunrise")),
		event.New("buienradar:sunset", sunset.Format(time.RFC3339), event.Datetime, event.WithTitle("Sunset")),
		event.New("buienradar:day_length", sunset.Sub(sunrise).Seconds(), event.Timedelta, event.WithTitle("Day Length")),
	}

	var station map[string]any
	for _, m := range f.Actual.StationMeasurements {
		if id, ok := m["stationid"].(float64); ok && int(id) == b.opts.StationID {
			station = m
			break
		}
	}
	if station == nil {
		b.logger.Error("station is not found")
		return out, nil
	}

	opts := []event.Option{}
	if s, ok := station["timestamp"].(string); ok {
		if ts, err := b.parseTime(s); err == nil {
			opts = append(opts, event.WithTimestamp(ts))
		}
	}
	for _, m := range measurements {
		v, ok := station[m.source]
		if !ok {
			continue
		}
		channel := fmt.Sprintf("buienradar:%d:%s", b.opts.StationID, m.target)
		out = append(out, event.New(channel, v, m.unit, opts...))
	}
	return out, nil
}

func (b *Buienradar) Close() error { return nil }
