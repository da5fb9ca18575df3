package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/saaga0h/duskd/pkg/mqtt"
)

// TestPayload is the JSON accepted on the test-mode control topic.
// Temperature 0 leaves test mode; Gamma defaults to 100.
type TestPayload struct {
	Temperature int      `json:"temperature"`
	Gamma       *float64 `json:"gamma,omitempty"`
}

// MQTTRelay forwards control topic messages
type MQTTRelay struct {
	client mqtt.Client
	topics mqtt.Topics
	logger *slog.Logger
}

// NewMQTTRelay creates a relay for the control topics under topics' prefix
func NewMQTTRelay(client mqtt.Client, topics mqtt.Topics, logger *slog.Logger) *MQTTRelay {
	return &MQTTRelay{client: client, topics: topics, logger: logger}
}

func (r *MQTTRelay) Name() string { return "mqtt" }

func (r *MQTTRelay) Run(ctx context.Context, out chan<- Message) error {
	handler := func(msg mqtt.Message) {
		m, err := r.parse(msg)
		if err != nil {
			r.logger.Warn("Ignoring control message", "topic", msg.Topic(), "error", err)
			return
		}
		r.logger.Info("Received control message", "topic", msg.Topic(), "message", m.String())
		send(ctx, out, m)
	}

	for _, topic := range []string{r.topics.ControlReload(), r.topics.ControlTest()} {
		if err := r.client.Subscribe(topic, 1, handler); err != nil {
			return err
		}
	}

	<-ctx.Done()
	return nil
}

func (r *MQTTRelay) parse(msg mqtt.Message) (Message, error) {
	switch msg.Topic() {
	case r.topics.ControlReload():
		return Reload{}, nil
	case r.topics.ControlTest():
		var p TestPayload
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			return nil, fmt.Errorf("failed to parse test payload: %w", err)
		}
		gamma := 100.0
		if p.Gamma != nil {
			gamma = *p.Gamma
		}
		return TestMode{Temperature: p.Temperature, Gamma: gamma}, nil
	}
	return nil, fmt.Errorf("unexpected topic %s", msg.Topic())
}
