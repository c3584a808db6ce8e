package automation

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigenein/myiot/internal/config"
	"github.com/eigenein/myiot/internal/event"
	"github.com/eigenein/myiot/internal/router"
	"github.com/eigenein/myiot/internal/service/buienradar"
	"github.com/eigenein/myiot/internal/service/clock"
	"github.com/eigenein/myiot/internal/service/file"
	"github.com/eigenein/myiot/internal/service/mqtt"
	"github.com/eigenein/myiot/internal/service/nest"
	"github.com/eigenein/myiot/internal/service/sysstat"
	"github.com/eigenein/myiot/pkg/log"
)

func TestBuildServices(t *testing.T) {
	services, err := BuildServices([]config.ServiceConfig{
		{Type: config.ServiceClock, Name: "m"},
		{Type: config.ServiceFile, Name: "cpu", Path: "/tmp/x", Unit: "CELSIUS", Float: true},
		{Type: config.ServiceNest, Token: "abcdefghijkl"},
		{Type: config.ServiceMQTT, Broker: "tcp://localhost:1883", Topic: "home/#"},
		{Type: config.ServiceSysStat, Host: "pi"},
		{Type: config.ServiceBuienradar, StationID: 6260},
	}, nil, nil)
	require.NoError(t, err)
	require.Len(t, services, 6)

	assert.IsType(t, &clock.Clock{}, services[0])
	assert.IsType(t, &file.File{}, services[1])
	assert.IsType(t, &nest.Nest{}, services[2])
	assert.IsType(t, &mqtt.Subscriber{}, services[3])
	assert.IsType(t, &sysstat.Sampler{}, services[4])
	assert.IsType(t, &buienradar.Buienradar{}, services[5])
	assert.NotContains(t, services[2].String(), "abcdefghijkl")
}

func TestBuildServicesErrors(t *testing.T) {
	_, err := BuildServices([]config.ServiceConfig{{Type: "toaster"}}, nil, nil)
	assert.ErrorIs(t, err, config.ErrUnknownService)

	_, err = BuildServices([]config.ServiceConfig{{Type: config.ServiceClock, Unit: "PARSEC"}}, nil, nil)
	assert.ErrorContains(t, err, "unknown unit")

	_, err = BuildServices([]config.ServiceConfig{{Type: config.ServiceFile, Name: "x"}}, nil, nil)
	assert.ErrorContains(t, err, "path is required")

	_, err = BuildServices([]config.ServiceConfig{{Type: config.ServiceNest}}, nil, nil)
	assert.Error(t, err)
}

type fakeHash struct{ fields []string }

func (f *fakeHash) HSet(ctx context.Context, _ string, values ...interface{}) *redis.IntCmd {
	f.fields = append(f.fields, values[0].(string))
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func TestRegisterRules(t *testing.T) {
	logger, out := log.NewCapture()
	sinks := NewSinks(config.SinksConfig{}, nil)
	hash := &fakeHash{}
	sinks.redis = hash

	r := router.New(nil)
	err := RegisterRules(r, []config.RuleConfig{
		{Name: "mirror", Channel: "file:.*", IfChanged: true, Action: config.ActionRedis},
		{Name: "hot", When: "value > 30", Action: config.ActionLog},
	}, sinks, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := event.New("file:cpu", 25.0, event.Celsius, event.WithTimestamp(ts))
	ctx := context.Background()

	r.Dispatch(ctx, router.Delivery{Event: event.New("file:cpu", 25.0, event.Celsius), Previous: &prev})
	r.Dispatch(ctx, router.Delivery{Event: event.New("file:cpu", 31.0, event.Celsius), Previous: &prev})
	r.Dispatch(ctx, router.Delivery{Event: event.New("clock:m", 40, event.Text)})

	assert.Equal(t, []string{"file:cpu"}, hash.fields)
	assert.Equal(t, 2, out.Count(log.InfoLevel, "event"))
}

func TestRegisterRulesErrors(t *testing.T) {
	sinks := NewSinks(config.SinksConfig{}, nil)
	cases := []config.RuleConfig{
		{Action: "sms"},
		{Action: config.ActionLog, Channel: "("},
		{Action: config.ActionLog, When: "value >"},
		{Action: config.ActionMQTT},
		{Action: config.ActionTelegram},
	}
	for _, c := range cases {
		err := RegisterRules(router.New(nil), []config.RuleConfig{c}, sinks, nil)
		assert.Error(t, err, "%+v", c)
	}
	err := RegisterRules(router.New(nil), []config.RuleConfig{{Action: "sms"}}, sinks, nil)
	assert.ErrorIs(t, err, config.ErrUnknownAction)
}

func TestSinksCloseWithoutClients(t *testing.T) {
	assert.NoError(t, NewSinks(config.SinksConfig{}, nil).Close())
}
