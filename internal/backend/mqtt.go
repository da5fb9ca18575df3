package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/saaga0h/duskd/internal/period"
	"github.com/saaga0h/duskd/pkg/mqtt"
)

// Command is the payload published to the display bridge
type Command struct {
	Temperature int     `json:"temperature"`
	Gamma       float64 `json:"gamma"`
	Timestamp   string  `json:"timestamp"`
}

// Announcement is the retained payload describing the current mode
type Announcement struct {
	Period      string   `json:"period"`
	Progress    *float64 `json:"progress,omitempty"`
	Temperature int      `json:"temperature"`
	Gamma       float64  `json:"gamma"`
	Timestamp   string   `json:"timestamp"`
}

// MQTT drives a display bridge over MQTT. The bridge subscribes to the
// set topic and publishes its connected outputs retained, which is how
// hot-plugged monitors are noticed.
type MQTT struct {
	client mqtt.Client
	topics mqtt.Topics
	logger *slog.Logger
	now    func() time.Time

	mu             sync.Mutex
	outputs        []string
	outputsChanged bool

	last    *period.Values
	cleanup sync.Once
}

// NewMQTT creates an MQTT backend. Call Subscribe before use.
func NewMQTT(client mqtt.Client, topics mqtt.Topics, logger *slog.Logger) *MQTT {
	return &MQTT{
		client: client,
		topics: topics,
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe starts tracking the bridge's output list
func (m *MQTT) Subscribe() error {
	if err := m.client.Subscribe(m.topics.DisplayOutputs(), 1, m.handleOutputs); err != nil {
		return fmt.Errorf("failed to track display outputs: %w", err)
	}
	return nil
}

func (m *MQTT) handleOutputs(msg mqtt.Message) {
	var outputs []string
	if err := json.Unmarshal(msg.Payload(), &outputs); err != nil {
		m.logger.Warn("Ignoring malformed output list", "topic", msg.Topic(), "error", err)
		return
	}
	slices.Sort(outputs)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.outputs != nil && !slices.Equal(m.outputs, outputs) {
		m.outputsChanged = true
	}
	m.outputs = outputs
}

func (m *MQTT) Apply(ctx context.Context, temperature int, gamma float64) error {
	if err := CheckRange(temperature, gamma); err != nil {
		return err
	}

	payload, err := json.Marshal(Command{
		Temperature: temperature,
		Gamma:       gamma,
		Timestamp:   m.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal display command: %w", err)
	}

	// Retained so a bridge that restarts picks up the current values
	if err := m.client.Publish(ctx, m.topics.DisplaySet(), 0, true, payload); err != nil {
		return err
	}

	m.last = &period.Values{Temperature: temperature, Gamma: gamma}
	return nil
}

func (m *MQTT) ApplyStartup(ctx context.Context, p period.Period, v period.Values) error {
	if err := m.Apply(ctx, v.Temperature, v.Gamma); err != nil {
		return err
	}

	a := Announcement{
		Period:      p.Kind().String(),
		Temperature: v.Temperature,
		Gamma:       v.Gamma,
		Timestamp:   m.now().UTC().Format(time.RFC3339Nano),
	}
	if progress, ok := period.ProgressOf(p); ok {
		a.Progress = &progress
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal period announcement: %w", err)
	}

	// The announcement is informational; the display already has its values
	if err := m.client.Publish(ctx, m.topics.StatePeriod(), 1, true, payload); err != nil {
		m.logger.Warn("Failed to announce period", "period", a.Period, "error", err)
	}
	return nil
}

func (m *MQTT) Name() string { return "mqtt" }

// Cleanup clears the retained announcement. The display keeps its last values.
func (m *MQTT) Cleanup(debug bool) {
	m.cleanup.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := m.client.Publish(ctx, m.topics.StatePeriod(), 1, true, nil); err != nil {
			m.logger.Warn("Failed to clear period announcement", "error", err)
		}
		if debug {
			m.logger.Debug("MQTT backend cleaned up", "outputs", m.Outputs())
		}
	})
}

// PollHotplug reapplies the last values when the bridge reports a changed output set
func (m *MQTT) PollHotplug(ctx context.Context) error {
	m.mu.Lock()
	changed := m.outputsChanged
	m.outputsChanged = false
	outputs := slices.Clone(m.outputs)
	m.mu.Unlock()

	if !changed || m.last == nil {
		return nil
	}

	m.logger.Info("Display outputs changed, reapplying", "outputs", outputs, "values", m.last.String())
	if err := m.Apply(ctx, m.last.Temperature, m.last.Gamma); err != nil {
		return fmt.Errorf("failed to reapply after hotplug: %w", err)
	}
	return nil
}

func (m *MQTT) SupportsSmoothing() bool { return true }

// Outputs returns the last reported output list
func (m *MQTT) Outputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.outputs)
}
