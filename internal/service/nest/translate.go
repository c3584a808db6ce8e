package nest

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/eigenein/myiot/internal/event"
)

type attribute struct {
	key   string
	unit  event.Unit
	title string
}

var (
	structureAttrs = []attribute{
		{"away", event.Enum, "Away"},
		{"wwn_security_state", event.Enum, "Security State"},
	}
	cameraAttrs = []attribute{
		{"is_streaming", event.Boolean, "Streaming"},
		{"is_online", event.Boolean, "Online"},
		{"snapshot_url", event.ImageURL, "Snapshot"},
	}
	thermostatAttrs = []attribute{
		{"ambient_temperature_c", event.Celsius, "Ambient Temperature"},
		{"humidity", event.RH, "Humidity"},
		{"is_online", event.Boolean, "Online"},
		{"hvac_state", event.Enum, "HVAC"},
		{"target_temperature_c", event.Celsius, "Target Temperature"},
	}
	alarmAttrs = []attribute{
		{"is_online", event.Boolean, "Online"},
	}
)

type device map[string]any

type payload struct {
	Data struct {
		Structures map[string]device `json:"structures"`
		Devices    struct {
			Cameras       map[string]device `json:"cameras"`
			Thermostats   map[string]device `json:"thermostats"`
			SmokeCOAlarms map[string]device `json:"smoke_co_alarms"`
		} `json:"devices"`
	} `json:"data"`
}

// Translate maps the JSON payload of a "put" record onto events. Attributes
// missing from a device are skipped.
func Translate(data []byte) ([]event.Event, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode nest payload: %w", err)
	}
	now := event.Now()
	var out []event.Event
	out = appendDevices(out, now, p.Data.Structures, "nest:structure", structureAttrs)
	out = appendDevices(out, now, p.Data.Devices.Cameras, "nest:camera", cameraAttrs)
	out = appendDevices(out, now, p.Data.Devices.Thermostats, "nest:thermostat", thermostatAttrs)
	out = appendDevices(out, now, p.Data.Devices.SmokeCOAlarms, "nest:smoke_co_alarm", alarmAttrs)

	for _, id := range slices.Sorted(maps.Keys(p.Data.Devices.Cameras)) {
		camera := p.Data.Devices.Cameras[id]
		last, ok := camera["last_event"].(map[string]any)
		if !ok {
			continue
		}
		imageURL, ok := last["animated_image_url"].(string)
		if !ok {
			continue
		}
		ts := now
		if s, ok := last["start_time"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
				ts = parsed
			}
		}
		out = append(out, event.New(
			fmt.Sprintf("nest:camera:%s:last_animated_image_url", id),
			imageURL,
			event.ImageURL,
			event.WithTimestamp(ts),
			event.WithTitle(camera.name()+" Last Event"),
		))
	}
	return out, nil
}

func appendDevices(out []event.Event, now time.Time, devices map[string]device, prefix string, attrs []attribute) []event.Event {
	for _, id := range slices.Sorted(maps.Keys(devices)) {
		d := devices[id]
		for _, a := range attrs {
			v, ok := d[a.key]
			if !ok {
				continue
			}
			out = append(out, event.New(
				fmt.Sprintf("%s:%s:%s", prefix, id, a.key),
				v,
				a.unit,
				event.WithTimestamp(now),
				event.WithTitle(d.name()+" "+a.title),
			))
		}
	}
	return out
}

func (d device) name() string {
	s, _ := d["name"].(string)
	return s
}
