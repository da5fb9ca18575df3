package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saaga0h/duskd/pkg/postgres"
)

// Record is one row of period history
type Record struct {
	ID          uuid.UUID
	At          time.Time
	Period      string
	Progress    *float64
	Temperature int
	Gamma       float64
	Reason      string
	Backend     string
}

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS period_history (
	id          UUID PRIMARY KEY,
	recorded_at TIMESTAMPTZ NOT NULL,
	period      TEXT NOT NULL,
	progress    DOUBLE PRECISION,
	temperature INTEGER NOT NULL,
	gamma       DOUBLE PRECISION NOT NULL,
	reason      TEXT NOT NULL,
	backend     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS period_history_recorded_at_idx ON period_history (recorded_at);`

const insertHistory = `
INSERT INTO period_history (id, recorded_at, period, progress, temperature, gamma, reason, backend)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// History batches records onto its own goroutine so the display loop never
// waits on the database.
type History struct {
	client        postgres.Client
	records       chan Record
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	dropped atomic.Int64
	written atomic.Int64
}

// NewHistory creates a writer buffering up to buffer records
func NewHistory(client postgres.Client, buffer int, logger *slog.Logger) *History {
	return &History{
		client:        client,
		records:       make(chan Record, buffer),
		batchSize:     32,
		flushInterval: 5 * time.Second,
		logger:        logger,
	}
}

// EnsureSchema creates the history table if missing
func (h *History) EnsureSchema(ctx context.Context) error {
	if _, err := h.client.Exec(ctx, createHistoryTable); err != nil {
		return fmt.Errorf("failed to create period_history table: %w", err)
	}
	return nil
}

// Record queues r without blocking. It is dropped when the buffer is full.
func (h *History) Record(r Record) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	select {
	case h.records <- r:
	default:
		if h.dropped.Add(1) == 1 {
			h.logger.Warn("History buffer full, dropping records")
		}
	}
}

// Run writes queued records until ctx is cancelled, then flushes what is left
func (h *History) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, h.batchSize)
	for {
		select {
		case r := <-h.records:
			batch = append(batch, r)
			if len(batch) >= h.batchSize {
				batch = h.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = h.flush(ctx, batch)
		case <-ctx.Done():
			h.drain(batch)
			return nil
		}
	}
}

func (h *History) drain(batch []Record) {
	for len(h.records) > 0 {
		batch = append(batch, <-h.records)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.flush(ctx, batch)

	h.logger.Debug("History writer stopped", "written", h.written.Load(), "dropped", h.dropped.Load())
}

func (h *History) flush(ctx context.Context, batch []Record) []Record {
	if len(batch) == 0 {
		return batch
	}

	err := h.client.Transaction(ctx, func(tx *sql.Tx) error {
		for _, r := range batch {
			if _, err := tx.ExecContext(ctx, insertHistory,
				r.ID, r.At, r.Period, r.Progress, r.Temperature, r.Gamma, r.Reason, r.Backend); err != nil {
				return fmt.Errorf("failed to insert history record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		h.logger.Warn("Failed to write period history", "records", len(batch), "error", err)
	} else {
		h.written.Add(int64(len(batch)))
	}
	return batch[:0]
}

// Written returns the number of records persisted
func (h *History) Written() int64 { return h.written.Load() }

// Dropped returns the number of records discarded because the buffer was full
func (h *History) Dropped() int64 { return h.dropped.Load() }
