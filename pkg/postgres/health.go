package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// HistoryTable holds one row per applied display change
const HistoryTable = "period_history"

// HealthStatus reports connectivity and the state of the period history table
type HealthStatus struct {
	Connected bool       `json:"connected"`
	Database  string     `json:"database"`
	Schema    bool       `json:"schema"`
	LastWrite *time.Time `json:"last_write,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// HealthCheck pings the pool, then checks that the history table exists and
// when it was last written. Failures are reported in the status, not as errors.
func (c *PostgresClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := HealthStatus{
		Database:  c.config.PostgresDB,
		Timestamp: time.Now(),
	}

	if err := c.Ping(ctx); err != nil {
		status.Error = fmt.Sprintf("ping failed: %v", err)
		return &status, nil
	}
	status.Connected = true

	if err := c.db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", HistoryTable).Scan(&status.Schema); err != nil {
		status.Error = fmt.Sprintf("failed to look up %s: %v", HistoryTable, err)
		return &status, nil
	}
	if !status.Schema {
		return &status, nil
	}

	var last sql.NullTime
	if err := c.db.QueryRowContext(ctx, "SELECT max(recorded_at) FROM "+HistoryTable).Scan(&last); err != nil {
		status.Error = fmt.Sprintf("failed to read last write: %v", err)
		return &status, nil
	}
	if last.Valid {
		status.LastWrite = &last.Time
	}

	return &status, nil
}
