package automation

import (
	"fmt"

	"github.com/eigenein/myiot/internal/actions"
	"github.com/eigenein/myiot/internal/config"
	"github.com/eigenein/myiot/internal/router"
	"github.com/eigenein/myiot/pkg/log"
)

// RegisterRules registers one handler per rule in configuration order.
func RegisterRules(r *router.Router, rules []config.RuleConfig, sinks *Sinks, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNop()
	}
	for i, rule := range rules {
		name := rule.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i)
		}
		h, err := buildRule(rule, sinks, logger.With(log.Str("rule", name)))
		if err != nil {
			return fmt.Errorf("rules[%d] %s: %w", i, name, err)
		}
		r.Register(name, h)
	}
	return nil
}

func buildRule(rule config.RuleConfig, sinks *Sinks, logger log.Logger) (router.Handler, error) {
	var decorators []router.Decorator
	if rule.Channel != "" {
		p, err := router.IfChannelLike(rule.Channel)
		if err != nil {
			return nil, err
		}
		decorators = append(decorators, router.If(p))
	}
	if rule.IfNewer {
		decorators = append(decorators, router.If(router.IfNewer))
	}
	if rule.IfChanged {
		decorators = append(decorators, router.If(router.IfChanged))
	}
	if rule.When != "" {
		p, err := router.IfExpr(rule.When)
		if err != nil {
			return nil, fmt.Errorf("when: %w", err)
		}
		decorators = append(decorators, router.If(p))
	}

	h, err := buildAction(rule, sinks, logger)
	if err != nil {
		return nil, err
	}
	return router.Chain(decorators...)(h), nil
}

func buildAction(rule config.RuleConfig, sinks *Sinks, logger log.Logger) (router.Handler, error) {
	switch rule.Action {
	case config.ActionLog:
		return actions.Log(logger), nil
	case config.ActionMQTT:
		if rule.Topic == "" {
			return nil, fmt.Errorf("mqtt: topic is required")
		}
		return actions.MQTTPublish(sinks.MQTT(), rule.Topic, rule.QoS, rule.Retained), nil
	case config.ActionRedis:
		return actions.RedisActual(sinks.Redis(), rule.Key), nil
	case config.ActionInflux:
		return actions.InfluxWrite(sinks.Influx()), nil
	case config.ActionKafka:
		return actions.KafkaForward(sinks.Kafka()), nil
	case config.ActionTelegram:
		chatID := rule.ChatID
		if chatID == "" {
			chatID = sinks.cfg.Telegram.ChatID
		}
		return actions.Telegram(actions.TelegramOptions{
			Token:     sinks.cfg.Telegram.Token,
			ChatID:    chatID,
			Template:  rule.Template,
			Animation: rule.Animation,
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownAction, rule.Action)
	}
}
