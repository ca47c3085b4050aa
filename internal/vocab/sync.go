package vocab

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/collective"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
)

// Collectives is the subset of collective.Communicator the synchronizer
// needs.
type Collectives interface {
	Gather(ctx context.Context, payload []byte) ([][]byte, error)
	GatherV(ctx context.Context, payload []byte) (*collective.Gathered, error)
	BroadcastV(ctx context.Context, payload []byte) ([]byte, error)
}

// Options tune a synchronization.
type Options struct {
	// Verify adds a round in which every rank reports the digest of its
	// copy and the coordinator checks they all match.
	Verify bool
}

// Synchronize turns every rank's Proposal into the same Agreed vocabulary.
// All ranks must call it together.
func Synchronize(ctx context.Context, comm Collectives, role collective.Role, p Proposal, opts Options) (Agreed, error) {
	logger := slog.Default().With("component", "vocab-sync", "role", role)

	payload, err := Encode(p.Terms)
	if err != nil {
		return Agreed{}, fmt.Errorf("encoding proposal: %w", err)
	}
	gathered, err := comm.GatherV(ctx, payload)
	if err != nil {
		return Agreed{}, fmt.Errorf("gathering proposals: %w", err)
	}

	var (
		agreed Agreed
		out    []byte
	)
	if role == collective.RoleCoordinator {
		agreed, err = Merge(gathered.Buf)
		if err != nil {
			return Agreed{}, fmt.Errorf("merging proposals: %w", err)
		}
		out, err = Encode(agreed.Terms)
		if err != nil {
			return Agreed{}, fmt.Errorf("encoding vocabulary: %w", err)
		}
		logger.Info("vocabulary merged",
			"proposed_bytes", len(gathered.Buf),
			"terms", agreed.Len(),
		)
	}

	body, err := comm.BroadcastV(ctx, out)
	if err != nil {
		return Agreed{}, fmt.Errorf("broadcasting vocabulary: %w", err)
	}
	if role != collective.RoleCoordinator {
		terms, err := Decode(body)
		if err != nil {
			return Agreed{}, fmt.Errorf("decoding vocabulary: %w", err)
		}
		agreed = Agreed{Terms: terms}
	}

	if opts.Verify {
		if err := verify(ctx, comm, role, agreed); err != nil {
			return Agreed{}, err
		}
	}
	return agreed, nil
}

func verify(ctx context.Context, comm Collectives, role collective.Role, agreed Agreed) error {
	digest := agreed.Digest()
	digests, err := comm.Gather(ctx, digest[:])
	if err != nil {
		return fmt.Errorf("gathering vocabulary digests: %w", err)
	}
	if role != collective.RoleCoordinator {
		return nil
	}
	for rank, d := range digests {
		if !bytes.Equal(d, digest[:]) {
			return apperrors.Coordinationf(apperrors.ErrCoordination,
				"rank %d holds a different vocabulary (digest %x, want %x)", rank, d, digest)
		}
	}
	return nil
}
