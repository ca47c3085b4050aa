// Package collector returns every rank's encoded rows to the coordinator and
// assembles them into the final matrix.
package collector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/matrix"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/rows"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/collective"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
)

// Collectives is the subset of collective.Communicator the collector needs.
type Collectives interface {
	Gather(ctx context.Context, payload []byte) ([][]byte, error)
	GatherV(ctx context.Context, payload []byte) (*collective.Gathered, error)
}

// Layout describes the matrix being assembled. Every rank must pass the
// same Ranges; Labels and Terms are only read on the coordinator.
type Layout struct {
	Labels []string
	Terms  []string
	Ranges []shard.Range
}

// Collect sends block to the coordinator, which returns the assembled
// matrix. Other ranks return nil.
//
// Dense frames have a size every rank can compute from the partition, so
// they travel in a single gather round. Sparse frames use a variable-length
// gather.
func Collect(ctx context.Context, comm Collectives, role collective.Role, block rows.Block, layout Layout) (*matrix.Matrix, error) {
	frame, err := block.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshaling rows: %w", err)
	}

	var frames [][]byte
	switch block.Encoding {
	case rows.EncodingDense:
		frames, err = comm.Gather(ctx, frame)
		if err != nil {
			return nil, fmt.Errorf("gathering dense rows: %w", err)
		}
		if role == collective.RoleCoordinator {
			if err := checkDenseSizes(frames, layout); err != nil {
				return nil, err
			}
		}
	case rows.EncodingSparse:
		g, err := comm.GatherV(ctx, frame)
		if err != nil {
			return nil, fmt.Errorf("gathering sparse rows: %w", err)
		}
		if role == collective.RoleCoordinator {
			frames = make([][]byte, len(g.Counts))
			for r := range frames {
				frames[r] = g.Part(r)
			}
		}
	default:
		return nil, fmt.Errorf("encoding %s: %w", block.Encoding, apperrors.ErrInvalidInput)
	}

	if role != collective.RoleCoordinator {
		return nil, nil
	}

	asm, err := NewAssembler(block.Encoding, layout.Ranges)
	if err != nil {
		return nil, err
	}
	m := matrix.New(layout.Labels, layout.Terms)
	if err := asm.Assemble(m, frames); err != nil {
		return nil, fmt.Errorf("assembling matrix: %w", err)
	}
	nrows, ncols := m.Dims()
	slog.Default().With("component", "collector").Info("matrix assembled",
		"encoding", block.Encoding,
		"rows", nrows,
		"columns", ncols,
		"bytes", totalLen(frames),
	)
	return m, nil
}

func checkDenseSizes(frames [][]byte, layout Layout) error {
	if len(frames) != len(layout.Ranges) {
		return apperrors.Coordinationf(apperrors.ErrCoordination, "%d frames for %d ranks", len(frames), len(layout.Ranges))
	}
	width := len(layout.Terms)
	for rank, f := range frames {
		want := rows.DenseFrameSize(layout.Ranges[rank].Len(), width)
		if len(f) != want {
			return apperrors.Coordinationf(apperrors.ErrLengthMismatch,
				"rank %d sent %d bytes of dense rows, want %d", rank, len(f), want)
		}
	}
	return nil
}

func totalLen(frames [][]byte) int {
	n := 0
	for _, f := range frames {
		n += len(f)
	}
	return n
}
