package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/duskd/pkg/mqtt"
	"github.com/saaga0h/duskd/pkg/postgres"
	"github.com/saaga0h/duskd/pkg/redis"
)

// StatusFunc reports the daemon's current period and last applied values
type StatusFunc func() Status

// Status is the daemon section of the detailed health response
type Status struct {
	Backend     string  `json:"backend"`
	Period      string  `json:"period"`
	Temperature int     `json:"temperature"`
	Gamma       float64 `json:"gamma"`
	TestMode    bool    `json:"test_mode"`
}

// Checker provides health check functionality for the daemon.
// Any dependency may be nil when its integration is disabled.
type Checker struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	status   StatusFunc
	metrics  *Metrics
	logger   *slog.Logger
}

// NewChecker creates a new health checker with the given dependencies
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, pgClient postgres.Client, status StatusFunc, metrics *Metrics, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: pgClient,
		status:   status,
		metrics:  metrics,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Services  *Services `json:"services,omitempty"`
	Daemon    *Status   `json:"daemon,omitempty"`

	// LastHistoryWrite is the newest period_history row, when Postgres is enabled
	LastHistoryWrite *time.Time `json:"last_history_write,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	MQTT     string `json:"mqtt"`
	Redis    string `json:"redis"`
	Postgres string `json:"postgres"`
}

const (
	serviceDisabled     = "disabled"
	serviceConnected    = "connected"
	serviceDisconnected = "disconnected"
	serviceNoSchema     = "no_schema"
)

// Handler returns the mux serving /health, /health/detail and /metrics
func (h *Checker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.HandlerFunc())
	mux.HandleFunc("/health/detail", h.DetailedHandlerFunc())
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}
	return mux
}

// HandlerFunc returns 200 while the process is alive without checking dependencies
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// DetailedHandlerFunc returns a handler that checks every enabled dependency
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		services := &Services{
			MQTT:     serviceDisabled,
			Redis:    serviceDisabled,
			Postgres: serviceDisabled,
		}

		if h.mqtt != nil {
			services.MQTT = connectedString(h.mqtt.IsConnected())
		}
		if h.redis != nil {
			services.Redis = connectedString(h.redis.Ping(ctx) == nil)
		}
		var lastWrite *time.Time
		if h.postgres != nil {
			st, err := h.postgres.HealthCheck(ctx)
			switch {
			case err != nil || !st.Connected:
				services.Postgres = serviceDisconnected
			case !st.Schema:
				services.Postgres = serviceNoSchema
			default:
				services.Postgres = serviceConnected
				lastWrite = st.LastWrite
			}
		}

		status := "healthy"
		statusCode := http.StatusOK
		if services.MQTT == serviceDisconnected || services.Redis == serviceDisconnected ||
			services.Postgres == serviceDisconnected || services.Postgres == serviceNoSchema {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,

			LastHistoryWrite: lastWrite,
		}
		if h.status != nil {
			st := h.status()
			response.Daemon = &st
		}

		h.write(w, statusCode, response)
	}
}

func (h *Checker) write(w http.ResponseWriter, code int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}

func connectedString(ok bool) string {
	if ok {
		return serviceConnected
	}
	return serviceDisconnected
}
