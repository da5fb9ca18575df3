package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/saaga0h/duskd/internal/backend"
	"github.com/saaga0h/duskd/internal/daemon"
	"github.com/saaga0h/duskd/internal/signals"
	"github.com/saaga0h/duskd/internal/solar"
	"github.com/saaga0h/duskd/internal/state"
	"github.com/saaga0h/duskd/pkg/config"
	"github.com/saaga0h/duskd/pkg/health"
	"github.com/saaga0h/duskd/pkg/mqtt"
	"github.com/saaga0h/duskd/pkg/postgres"
	"github.com/saaga0h/duskd/pkg/redis"
)

const (
	// lastAppliedTTL keeps the restart baseline around for a week of downtime
	lastAppliedTTL = 7 * 24 * time.Hour
	historyBuffer  = 256
	connectTimeout = 10 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration with hierarchy: defaults → file → .env → env → flags
	loader := config.NewLoader(os.Args[1:])
	cfg, err := loader.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 2
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting duskd",
		"service_name", cfg.ServiceName,
		"config_file", cfg.ConfigFile,
		"mode", cfg.Mode,
		"backend", cfg.Backend,
		"log_level", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional integrations; nil interfaces mean disabled
	var (
		mqttClient  mqtt.Client
		redisClient redis.Client
		pgClient    postgres.Client
		history     *state.History
		opts        []daemon.Option
	)

	if cfg.Backend == config.BackendMQTT || cfg.MQTTControl {
		mqttClient = mqtt.NewClient(cfg, logger)
		connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
		err := mqttClient.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Error("Failed to connect to MQTT broker", "broker", cfg.MQTTAddress(), "error", err)
			return 1
		}
		defer mqttClient.Disconnect()
	}

	if cfg.RedisEnabled {
		redisClient = redis.NewClient(cfg, logger)
		defer redisClient.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, connectTimeout)
		if err := redisClient.Ping(pingCtx); err != nil {
			logger.Warn("Redis unavailable, restart baseline may be missing", "address", cfg.RedisAddress(), "error", err)
		}
		pingCancel()
		opts = append(opts, daemon.WithStore(state.NewRedisStore(redisClient, cfg.ServiceName, lastAppliedTTL, logger)))
	}

	if cfg.PostgresEnabled {
		client := postgres.NewClient(cfg, logger)
		connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
		err := client.Connect(connectCtx)
		if err == nil {
			history = state.NewHistory(client, historyBuffer, logger)
			err = history.EnsureSchema(connectCtx)
		}
		connectCancel()

		if err != nil {
			logger.Warn("Period history disabled", "error", err)
			history = nil
			client.Disconnect()
		} else {
			pgClient = client
			defer client.Disconnect()
			opts = append(opts, daemon.WithHistory(history))
		}
	}

	display, err := backend.New(cfg, mqttClient, logger)
	if err != nil {
		logger.Error("Failed to create display backend", "error", err)
		return 1
	}

	var metrics *health.Metrics
	if cfg.HealthPort > 0 {
		metrics = health.NewMetrics()
		opts = append(opts, daemon.WithMetrics(metrics))
	}

	messages := make(chan signals.Message, signals.Buffer)

	d, err := daemon.New(cfg, loader, display, solar.NewSuncalc(), messages, logger, opts...)
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			return 2
		}
		logger.Error("Failed to create daemon", "error", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)

	relays := []signals.Relay{
		signals.NewOSRelay(logger),
		signals.NewResumeWatcher(logger),
	}
	if cfg.MQTTControl && mqttClient != nil {
		relays = append(relays, signals.NewMQTTRelay(mqttClient, mqtt.NewTopics(cfg.MQTTTopicPrefix), logger))
	}
	g.Go(func() error {
		return signals.Run(gctx, messages, relays...)
	})

	// History is started on the root context so it drains after the daemon's final record
	historyCtx, historyCancel := context.WithCancel(context.Background())
	defer historyCancel()
	historyDone := make(chan error, 1)
	if history != nil {
		go func() { historyDone <- history.Run(historyCtx) }()
	} else {
		historyDone <- nil
	}

	if cfg.HealthPort > 0 {
		checker := health.NewChecker(mqttClient, redisClient, pgClient, d.Status, metrics, logger)
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HealthPort),
			Handler:           checker.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Starting health check server", "port", cfg.HealthPort)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	// A failing relay or server cancels gctx, which stops the daemon gracefully
	runErr := d.Run(gctx)
	cancel()

	if err := g.Wait(); err != nil {
		logger.Error("Background task failed", "error", err)
	}

	historyCancel()
	if err := <-historyDone; err != nil {
		logger.Warn("History writer stopped with error", "error", err)
	}
	if history != nil {
		logger.Info("Period history flushed", "written", history.Written(), "dropped", history.Dropped())
	}

	if runErr != nil {
		logger.Error("duskd failed", "error", runErr)
		return 1
	}

	logger.Info("duskd shutdown complete")
	return 0
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
