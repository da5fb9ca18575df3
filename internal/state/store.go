// Package state persists what the daemon applied: the last values in Redis
// (the startup baseline after a restart) and a period history in Postgres.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/saaga0h/duskd/internal/period"
	"github.com/saaga0h/duskd/pkg/redis"
)

// Snapshot is the last applied state
type Snapshot struct {
	Values period.Values
	Period string
	At     time.Time
}

// Hash field names
const (
	fieldTemperature = "temperature"
	fieldGamma       = "gamma"
	fieldPeriod      = "period"
	fieldAt          = "at"
)

// RedisStore keeps the last applied values in a Redis hash
type RedisStore struct {
	client redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore creates a store for service. Entries expire after ttl.
func NewRedisStore(client redis.Client, service string, ttl time.Duration, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		key:    redis.LastAppliedKey(service),
		ttl:    ttl,
		logger: logger,
	}
}

// Save stores s, replacing the previous snapshot
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	fields := map[string]interface{}{
		fieldTemperature: snap.Values.Temperature,
		fieldGamma:       strconv.FormatFloat(snap.Values.Gamma, 'f', -1, 64),
		fieldPeriod:      snap.Period,
		fieldAt:          snap.At.UTC().Format(time.RFC3339Nano),
	}
	if err := s.client.HSet(ctx, s.key, fields); err != nil {
		return fmt.Errorf("failed to save last applied state: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, s.key, s.ttl); err != nil {
			return fmt.Errorf("failed to save last applied state: %w", err)
		}
	}
	return nil
}

// Load returns the stored snapshot. ok is false when nothing usable is stored.
func (s *RedisStore) Load(ctx context.Context) (snap Snapshot, ok bool, err error) {
	fields, err := s.client.HGetAll(ctx, s.key)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to load last applied state: %w", err)
	}
	if len(fields) == 0 {
		return Snapshot{}, false, nil
	}

	snap, err = parseSnapshot(fields)
	if err != nil {
		s.logger.Warn("Discarding corrupt last applied state", "key", s.key, "error", err)
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

func parseSnapshot(fields map[string]string) (Snapshot, error) {
	temperature, err := strconv.Atoi(fields[fieldTemperature])
	if err != nil {
		return Snapshot{}, fmt.Errorf("bad %s: %w", fieldTemperature, err)
	}
	gamma, err := strconv.ParseFloat(fields[fieldGamma], 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("bad %s: %w", fieldGamma, err)
	}
	at, err := time.Parse(time.RFC3339Nano, fields[fieldAt])
	if err != nil {
		return Snapshot{}, fmt.Errorf("bad %s: %w", fieldAt, err)
	}
	return Snapshot{
		Values: period.Values{Temperature: temperature, Gamma: gamma},
		Period: fields[fieldPeriod],
		At:     at,
	}, nil
}
