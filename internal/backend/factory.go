package backend

import (
	"fmt"
	"log/slog"

	"github.com/saaga0h/duskd/pkg/config"
	"github.com/saaga0h/duskd/pkg/mqtt"
)

// New builds the configured backend wrapped in a Breaker. mqttClient may be
// nil unless the mqtt backend is selected; it must already be connected.
func New(cfg *config.Config, mqttClient mqtt.Client, logger *slog.Logger) (*Breaker, error) {
	var inner Backend

	switch cfg.Backend {
	case config.BackendLog:
		inner = NewLog(logger)
	case config.BackendMQTT:
		if mqttClient == nil {
			return nil, fmt.Errorf("backend %q requires an MQTT client", cfg.Backend)
		}
		m := NewMQTT(mqttClient, mqtt.NewTopics(cfg.MQTTTopicPrefix), logger)
		if err := m.Subscribe(); err != nil {
			return nil, err
		}
		inner = m
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	logger.Info("Display backend selected", "backend", inner.Name(), "max_failures", cfg.BackendMaxFailures)
	return NewBreaker(inner, cfg.BackendMaxFailures, logger), nil
}
