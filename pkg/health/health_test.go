package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/duskd/pkg/mqtt"
	"github.com/saaga0h/duskd/pkg/postgres"
	"github.com/saaga0h/duskd/pkg/redis"
)

// Mock MQTT client reporting a fixed connection state
type mockMQTTClient struct {
	connected bool
}

func (m *mockMQTTClient) Connect(context.Context) error { return nil }
func (m *mockMQTTClient) Disconnect()                   {}
func (m *mockMQTTClient) Subscribe(string, byte, mqtt.MessageHandler) error {
	return nil
}
func (m *mockMQTTClient) Publish(context.Context, string, byte, bool, []byte) error {
	return nil
}
func (m *mockMQTTClient) IsConnected() bool { return m.connected }

// Mock Redis client whose Ping fails when pingErr is set
type mockRedisClient struct {
	pingErr error
}

func (m *mockRedisClient) HSet(context.Context, string, map[string]interface{}) error { return nil }
func (m *mockRedisClient) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, nil
}
func (m *mockRedisClient) Expire(context.Context, string, time.Duration) error { return nil }
func (m *mockRedisClient) Del(context.Context, ...string) error               { return nil }
func (m *mockRedisClient) Ping(context.Context) error                         { return m.pingErr }
func (m *mockRedisClient) Close() error                                       { return nil }

type mockPostgresClient struct {
	connected bool
	schema    bool
	lastWrite *time.Time
}

func (m *mockPostgresClient) Connect(context.Context) error { return nil }
func (m *mockPostgresClient) Disconnect() error             { return nil }
func (m *mockPostgresClient) Exec(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (m *mockPostgresClient) Transaction(context.Context, func(*sql.Tx) error) error { return nil }
func (m *mockPostgresClient) HealthCheck(context.Context) (*postgres.HealthStatus, error) {
	return &postgres.HealthStatus{Connected: m.connected, Database: "duskd", Schema: m.schema, LastWrite: m.lastWrite}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	if strings.HasPrefix(path, "/health") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealth_AlwaysOK(t *testing.T) {
	checker := NewChecker(&mockMQTTClient{connected: false}, nil, nil, nil, nil, testLogger())

	rec, resp := get(t, checker.Handler(), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Services)
}

func TestHealthDetail(t *testing.T) {
	status := func() Status {
		return Status{Backend: "mqtt", Period: "sunset", Temperature: 5200, Gamma: 96.5}
	}
	written := time.Date(2026, time.March, 10, 19, 5, 0, 0, time.UTC)

	tests := []struct {
		name     string
		mqtt     mqtt.Client
		redis    *mockRedisClient
		postgres *mockPostgresClient
		code     int
		status   string
		services Services
		written  *time.Time
	}{
		{
			name:     "all disabled",
			code:     http.StatusOK,
			status:   "healthy",
			services: Services{MQTT: "disabled", Redis: "disabled", Postgres: "disabled"},
		},
		{
			name:     "all connected",
			mqtt:     &mockMQTTClient{connected: true},
			redis:    &mockRedisClient{},
			postgres: &mockPostgresClient{connected: true, schema: true, lastWrite: &written},
			code:     http.StatusOK,
			status:   "healthy",
			services: Services{MQTT: "connected", Redis: "connected", Postgres: "connected"},
			written:  &written,
		},
		{
			name:     "history table missing",
			postgres: &mockPostgresClient{connected: true},
			code:     http.StatusServiceUnavailable,
			status:   "degraded",
			services: Services{MQTT: "disabled", Redis: "disabled", Postgres: "no_schema"},
		},
		{
			name:     "history table empty",
			postgres: &mockPostgresClient{connected: true, schema: true},
			code:     http.StatusOK,
			status:   "healthy",
			services: Services{MQTT: "disabled", Redis: "disabled", Postgres: "connected"},
		},
		{
			name:     "redis down",
			mqtt:     &mockMQTTClient{connected: true},
			redis:    &mockRedisClient{pingErr: errors.New("connection refused")},
			code:     http.StatusServiceUnavailable,
			status:   "degraded",
			services: Services{MQTT: "connected", Redis: "disconnected", Postgres: "disabled"},
		},
		{
			name:     "postgres down",
			postgres: &mockPostgresClient{connected: false},
			code:     http.StatusServiceUnavailable,
			status:   "degraded",
			services: Services{MQTT: "disabled", Redis: "disabled", Postgres: "disconnected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Typed nil pointers must not reach the checker as non-nil interfaces
			var (
				r redis.Client
				p postgres.Client
			)
			if tt.redis != nil {
				r = tt.redis
			}
			if tt.postgres != nil {
				p = tt.postgres
			}

			checker := NewChecker(tt.mqtt, r, p, status, nil, testLogger())
			rec, resp := get(t, checker.Handler(), "/health/detail")

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.status, resp.Status)
			require.NotNil(t, resp.Services)
			assert.Equal(t, tt.services, *resp.Services)
			require.NotNil(t, resp.Daemon)
			assert.Equal(t, status(), *resp.Daemon)
			if tt.written == nil {
				assert.Nil(t, resp.LastHistoryWrite)
			} else {
				require.NotNil(t, resp.LastHistoryWrite)
				assert.True(t, tt.written.Equal(*resp.LastHistoryWrite))
			}
		})
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.Applied(4200, 93.5)
	m.Period("sunset", 0.25)
	m.ApplyFailed("mqtt", 2)
	m.Anomaly("resume")

	checker := NewChecker(nil, nil, nil, nil, m, testLogger())
	rec, _ := get(t, checker.Handler(), "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "duskd_temperature_kelvin 4200")
	assert.Contains(t, body, `duskd_period{kind="sunset"} 0.25`)
	assert.Contains(t, body, `duskd_apply_failures_total{backend="mqtt"} 2`)
	assert.Contains(t, body, `duskd_time_anomalies_total{kind="resume"} 1`)
}

func TestMetrics_PeriodKeepsOnlyCurrentKind(t *testing.T) {
	m := NewMetrics()
	m.Period("sunset", 0.9)
	m.Period("night", 1)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	period := findFamily(families, "duskd_period")
	require.NotNil(t, period)
	require.Len(t, period.GetMetric(), 1)
	assert.Equal(t, "night", period.GetMetric()[0].GetLabel()[0].GetValue())
	assert.Equal(t, 1.0, period.GetMetric()[0].GetGauge().GetValue())
}

func TestMetrics_LatencyAndPacing(t *testing.T) {
	m := NewMetrics()
	m.ApplyLatency(3 * time.Millisecond)
	m.ApplyLatency(7 * time.Millisecond)
	m.Pacing(20 * time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	latency := findFamily(families, "duskd_apply_duration_seconds")
	require.NotNil(t, latency)
	assert.Equal(t, uint64(2), latency.GetMetric()[0].GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.010, latency.GetMetric()[0].GetHistogram().GetSampleSum(), 1e-9)

	pacing := findFamily(families, "duskd_animation_interval_seconds")
	require.NotNil(t, pacing)
	assert.InDelta(t, 0.020, pacing.GetMetric()[0].GetGauge().GetValue(), 1e-9)
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}
