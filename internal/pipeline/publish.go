package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/table"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/resilience"
)

// Sinks are the optional destinations of a finished matrix besides the CSV
// file. Nil fields are skipped.
type Sinks struct {
	Store   *store.Store
	Events  events.Publisher
	Timeout time.Duration
}

// Summary describes a finished run for the sinks.
type Summary struct {
	RunID    string
	Output   string
	Encoding string
	Workers  int
	Elapsed  time.Duration
}

// WriteOutput writes the coordinator's matrix to path.
func WriteOutput(res *Result, path string) error {
	return table.WriteFile(path, res.Matrix)
}

// Publish hands a finished matrix to the configured sinks. A store failure
// is returned; an event that cannot be delivered is only logged, since the
// table is already written.
func Publish(ctx context.Context, res *Result, sum Summary, sinks Sinks) error {
	logger := slog.Default().With("component", "publish", "run_id", sum.RunID)
	timeout := sinks.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if sinks.Store != nil {
		run := store.Run{
			ID:             sum.RunID,
			Encoding:       sum.Encoding,
			Workers:        sum.Workers,
			ElapsedSeconds: sum.Elapsed.Seconds(),
			CreatedAt:      time.Now(),
		}
		err := resilience.WithTimeout(ctx, timeout, "store matrix", func(ctx context.Context) error {
			if err := sinks.Store.Migrate(ctx); err != nil {
				return err
			}
			return sinks.Store.Save(ctx, run, res.Matrix)
		})
		if err != nil {
			return err
		}
	}

	if sinks.Events != nil {
		nrows, ncols := res.Matrix.Dims()
		nonZero := 0
		for doc := 0; doc < nrows; doc++ {
			for _, v := range res.Matrix.Row(doc) {
				if v != 0 {
					nonZero++
				}
			}
		}
		ev := events.RunCompleted{
			RunID:          sum.RunID,
			Output:         sum.Output,
			Encoding:       sum.Encoding,
			Workers:        sum.Workers,
			Documents:      nrows,
			Terms:          ncols,
			NonZero:        nonZero,
			ElapsedSeconds: sum.Elapsed.Seconds(),
			CompletedAt:    time.Now().UTC(),
		}
		err := resilience.WithTimeout(ctx, timeout, "publish run event", func(ctx context.Context) error {
			return events.Publish(ctx, sinks.Events, ev)
		})
		if err != nil {
			logger.Warn("run event not delivered", "error", err)
		}
	}
	return nil
}
