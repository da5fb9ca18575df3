package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/duskd/internal/period"
	"github.com/saaga0h/duskd/pkg/mqtt"
)

// Mock MQTT client for testing
type mockMQTTClient struct {
	mu         sync.Mutex
	published  []publishedMessage
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Topic() string   { return m.topic }
func (m *mockMessage) Payload() []byte { return m.payload }
func (m *mockMessage) Ack()            {}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTTClient) Connect(context.Context) error { return nil }
func (m *mockMQTTClient) Disconnect()                   {}
func (m *mockMQTTClient) IsConnected() bool             { return true }

func (m *mockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTTClient) Publish(_ context.Context, topic string, qos byte, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, publishedMessage{topic, qos, retained, payload})
	return nil
}

func (m *mockMQTTClient) deliver(topic string, payload string) {
	m.handlers[topic](&mockMessage{topic: topic, payload: []byte(payload)})
}

func (m *mockMQTTClient) on(topic string) []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishedMessage
	for _, p := range m.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCheckRange(t *testing.T) {
	tests := []struct {
		name        string
		temperature int
		gamma       float64
		wantErr     bool
	}{
		{"neutral", 6500, 100, false},
		{"lower bounds", 1000, 10, false},
		{"upper bounds", 20000, 200, false},
		{"too warm", 999, 100, true},
		{"too cold", 20001, 100, true},
		{"gamma too low", 6500, 9.9, true},
		{"gamma too high", 6500, 200.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRange(tt.temperature, tt.gamma)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutOfRange)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLog_AppliesAndRejects(t *testing.T) {
	l := NewLog(testLogger())
	ctx := context.Background()

	require.NoError(t, l.ApplyStartup(ctx, period.Night{}, period.Values{Temperature: 3300, Gamma: 90}))
	assert.Equal(t, period.Values{Temperature: 3300, Gamma: 90}, l.Last())

	assert.ErrorIs(t, l.Apply(ctx, 500, 90), ErrOutOfRange)
	assert.Equal(t, period.Values{Temperature: 3300, Gamma: 90}, l.Last())

	assert.True(t, l.SupportsSmoothing())
	assert.NoError(t, l.PollHotplug(ctx))
	l.Cleanup(true)
	l.Cleanup(true)
}

func newTestMQTT(t *testing.T) (*MQTT, *mockMQTTClient) {
	client := newMockMQTTClient()
	m := NewMQTT(client, mqtt.NewTopics("duskd"), testLogger())
	m.now = func() time.Time { return time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC) }
	require.NoError(t, m.Subscribe())
	return m, client
}

func TestMQTT_ApplyPublishesRetainedCommand(t *testing.T) {
	m, client := newTestMQTT(t)

	require.NoError(t, m.Apply(context.Background(), 4100, 95))

	msgs := client.on("duskd/display/set")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].retained)

	var cmd Command
	require.NoError(t, json.Unmarshal(msgs[0].payload, &cmd))
	assert.Equal(t, 4100, cmd.Temperature)
	assert.Equal(t, 95.0, cmd.Gamma)
	assert.Equal(t, "2026-03-10T21:00:00Z", cmd.Timestamp)
}

func TestMQTT_ApplyRejectsOutOfRangeWithoutPublishing(t *testing.T) {
	m, client := newTestMQTT(t)

	assert.ErrorIs(t, m.Apply(context.Background(), 25000, 100), ErrOutOfRange)
	assert.Empty(t, client.on("duskd/display/set"))
}

func TestMQTT_ApplyStartupAnnouncesPeriod(t *testing.T) {
	tests := []struct {
		name         string
		period       period.Period
		wantPeriod   string
		wantProgress *float64
	}{
		{"stable", period.Night{}, "night", nil},
		{"transition", period.Sunset{Progress: 0.25}, "sunset", ptr(0.25)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, client := newTestMQTT(t)
			require.NoError(t, m.ApplyStartup(context.Background(), tt.period, period.Values{Temperature: 5000, Gamma: 97}))

			msgs := client.on("duskd/state/period")
			require.Len(t, msgs, 1)
			assert.True(t, msgs[0].retained)

			var a Announcement
			require.NoError(t, json.Unmarshal(msgs[0].payload, &a))
			assert.Equal(t, tt.wantPeriod, a.Period)
			assert.Equal(t, tt.wantProgress, a.Progress)
			assert.Equal(t, 5000, a.Temperature)
		})
	}
}

func TestMQTT_PollHotplugReappliesOnOutputChange(t *testing.T) {
	m, client := newTestMQTT(t)
	ctx := context.Background()

	// Initial output list is the baseline, not a change
	client.deliver("duskd/display/outputs", `["DP-1"]`)
	require.NoError(t, m.Apply(ctx, 3300, 90))
	require.NoError(t, m.PollHotplug(ctx))
	assert.Len(t, client.on("duskd/display/set"), 1)

	// Same set again
	client.deliver("duskd/display/outputs", `["DP-1"]`)
	require.NoError(t, m.PollHotplug(ctx))
	assert.Len(t, client.on("duskd/display/set"), 1)

	client.deliver("duskd/display/outputs", `["HDMI-A-1","DP-1"]`)
	require.NoError(t, m.PollHotplug(ctx))
	msgs := client.on("duskd/display/set")
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"DP-1", "HDMI-A-1"}, m.Outputs())

	var cmd Command
	require.NoError(t, json.Unmarshal(msgs[1].payload, &cmd))
	assert.Equal(t, 3300, cmd.Temperature)

	// Change flag consumed
	require.NoError(t, m.PollHotplug(ctx))
	assert.Len(t, client.on("duskd/display/set"), 2)
}

func TestMQTT_MalformedOutputListIgnored(t *testing.T) {
	m, client := newTestMQTT(t)

	client.deliver("duskd/display/outputs", `["DP-1"]`)
	client.deliver("duskd/display/outputs", `not json`)
	assert.Equal(t, []string{"DP-1"}, m.Outputs())
}

func TestMQTT_CleanupClearsAnnouncementOnce(t *testing.T) {
	m, client := newTestMQTT(t)

	m.Cleanup(false)
	m.Cleanup(true)

	msgs := client.on("duskd/state/period")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].retained)
	assert.Empty(t, msgs[0].payload)
}

// Mock backend whose Apply fails while failing is set
type mockBackend struct {
	*Log
	failing bool
	calls   int
}

func (m *mockBackend) Apply(ctx context.Context, temperature int, gamma float64) error {
	m.calls++
	if m.failing {
		return errors.New("compositor gone")
	}
	return m.Log.Apply(ctx, temperature, gamma)
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &mockBackend{Log: NewLog(testLogger()), failing: true}
	b := NewBreaker(inner, 3, testLogger())
	ctx := context.Background()

	err := b.Apply(ctx, 6500, 100)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnreachable)
	assert.NotErrorIs(t, b.Apply(ctx, 6500, 100), ErrUnreachable)

	// Third consecutive failure trips it
	err = b.Apply(ctx, 6500, 100)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "compositor gone")
	assert.True(t, b.Open())

	// Open breaker short-circuits
	assert.ErrorIs(t, b.Apply(ctx, 6500, 100), ErrUnreachable)
	assert.Equal(t, 3, inner.calls)
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	inner := &mockBackend{Log: NewLog(testLogger())}
	b := NewBreaker(inner, 2, testLogger())
	ctx := context.Background()

	inner.failing = true
	assert.Error(t, b.Apply(ctx, 6500, 100))
	inner.failing = false
	assert.NoError(t, b.Apply(ctx, 6500, 100))
	inner.failing = true
	assert.NotErrorIs(t, b.Apply(ctx, 6500, 100), ErrUnreachable)
	assert.False(t, b.Open())
}

func TestBreaker_HotplugPollsDoNotResetStreak(t *testing.T) {
	inner := &mockBackend{Log: NewLog(testLogger()), failing: true}
	b := NewBreaker(inner, 3, testLogger())
	ctx := context.Background()

	var err error
	for i := 0; i < 3; i++ {
		if i > 0 {
			require.NoError(t, b.PollHotplug(ctx))
		}
		err = b.Apply(ctx, 6500, 100)
	}

	assert.ErrorIs(t, err, ErrUnreachable)
	assert.True(t, b.Open())
	assert.ErrorIs(t, b.PollHotplug(ctx), ErrUnreachable)
	assert.Equal(t, 3, inner.calls)
}

func TestBreaker_OutOfRangeDoesNotCount(t *testing.T) {
	b := NewBreaker(NewLog(testLogger()), 1, testLogger())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Apply(context.Background(), 50, 100), ErrOutOfRange)
	}
	assert.False(t, b.Open())
	assert.Equal(t, "log", b.Name())
}

func ptr(f float64) *float64 { return &f }
