package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/collective"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// RunLocal runs a build with workers ranks as goroutines sharing one Hub.
// The first rank to fail cancels the others. It returns the coordinator's
// Result.
func RunLocal(ctx context.Context, paths []string, workers int, opts Options, m *metrics.Metrics) (*Result, error) {
	logger := slog.Default().With("component", "local-cluster", "run_id", opts.RunID)
	hub := collective.NewHub(workers)

	comms := make([]*collective.Communicator, workers)
	for rank := range comms {
		comm, err := collective.New(rank, workers, hub, m)
		if err != nil {
			return nil, err
		}
		comms[rank] = comm
	}

	g, gctx := errgroup.WithContext(ctx)
	var result *Result
	for rank, comm := range comms {
		rank, comm := rank, comm
		g.Go(func() error {
			var input []string
			if comm.Role() == collective.RoleCoordinator {
				input = paths
			}
			res, err := NewWorker(comm, opts, m).Run(gctx, input)
			if err != nil {
				logger.Error("rank failed", "rank", rank, "error", err)
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			if comm.Role() == collective.RoleCoordinator {
				result = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Info("local cluster finished", "workers", workers)
	return result, nil
}
