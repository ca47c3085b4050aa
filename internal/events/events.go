// Package events announces finished matrix builds on Kafka and follows
// those announcements.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/kafka"
)

// RunCompleted is published once per successful run by the coordinator.
type RunCompleted struct {
	RunID          string    `json:"run_id"`
	Output         string    `json:"output"`
	Encoding       string    `json:"encoding"`
	Workers        int       `json:"workers"`
	Documents      int       `json:"documents"`
	Terms          int       `json:"terms"`
	NonZero        int       `json:"non_zero"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publish sends ev keyed by its run ID.
func Publish(ctx context.Context, p Publisher, ev RunCompleted) error {
	if err := p.Publish(ctx, kafka.Event{Key: ev.RunID, Value: ev}); err != nil {
		return fmt.Errorf("publishing run %s: %w", ev.RunID, err)
	}
	return nil
}

// HandleMessage returns a kafka.MessageHandler that logs every completed run
// and passes it to fn when fn is non-nil. Undecodable messages are logged
// and skipped so they do not block the partition.
func HandleMessage(fn func(RunCompleted)) kafka.MessageHandler {
	logger := slog.Default().With("component", "run-events")
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[RunCompleted](value)
		if err != nil {
			logger.Error("failed to decode run event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		logger.Info("run completed",
			"run_id", ev.RunID,
			"output", ev.Output,
			"encoding", ev.Encoding,
			"workers", ev.Workers,
			"documents", ev.Documents,
			"terms", ev.Terms,
			"elapsed_seconds", ev.ElapsedSeconds,
		)
		if fn != nil {
			fn(ev)
		}
		return nil
	}
}
