// Package collective implements the rank-based collective operations the
// matrix build coordinates through: Gather, Broadcast and their
// variable-length forms GatherV and BroadcastV. Rank 0 is always the
// coordinator and the root of every collective.
//
// Every collective is a full barrier: no rank returns from a round until all
// ranks have entered it. Rounds are matched by a per-communicator sequence
// number, so all ranks must issue the same collectives in the same order.
// A failed round is fatal for the run and is never retried.
package collective

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/metrics"
)

// Coordinator is the rank that roots every collective and assembles the
// result.
const Coordinator = 0

// Role is the part a rank plays in a run.
type Role int

const (
	RoleWorker Role = iota
	RoleCoordinator
)

func (r Role) String() string {
	if r == RoleCoordinator {
		return "coordinator"
	}
	return "worker"
}

// RoleOf returns the role of rank.
func RoleOf(rank int) Role {
	if rank == Coordinator {
		return RoleCoordinator
	}
	return RoleWorker
}

// Kind identifies the collective a round belongs to.
type Kind uint8

const (
	KindGather Kind = iota + 1
	KindBroadcast
)

func (k Kind) String() string {
	switch k {
	case KindGather:
		return "gather"
	case KindBroadcast:
		return "broadcast"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Round identifies one rank's participation in one collective.
type Round struct {
	Seq  uint64 `json:"seq"`
	Kind Kind   `json:"kind"`
	Rank int    `json:"rank"`
}

// Transport moves round payloads between ranks.
//
// Exchange contributes payload to round r and blocks until every rank has
// contributed. The coordinator receives every payload indexed by rank. For
// broadcast rounds the other ranks receive the coordinator's payload as the
// only element; for gather rounds they receive nil.
type Transport interface {
	Exchange(ctx context.Context, r Round, payload []byte) ([][]byte, error)
	Close() error
}

// Communicator issues collectives for one rank.
type Communicator struct {
	rank      int
	size      int
	transport Transport
	seq       uint64
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Communicator for rank in a group of size ranks. m may be nil.
func New(rank, size int, t Transport, m *metrics.Metrics) (*Communicator, error) {
	if size <= 0 {
		return nil, fmt.Errorf("group size %d: %w", size, apperrors.ErrInvalidInput)
	}
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("rank %d out of range [0,%d): %w", rank, size, apperrors.ErrInvalidInput)
	}
	return &Communicator{
		rank:      rank,
		size:      size,
		transport: t,
		metrics:   m,
		logger:    slog.Default().With("component", "collective", "rank", rank),
	}, nil
}

func (c *Communicator) Rank() int  { return c.rank }
func (c *Communicator) Size() int  { return c.size }
func (c *Communicator) Role() Role { return RoleOf(c.rank) }

// Close releases the transport.
func (c *Communicator) Close() error {
	return c.transport.Close()
}

func (c *Communicator) exchange(ctx context.Context, kind Kind, payload []byte) ([][]byte, error) {
	c.seq++
	r := Round{Seq: c.seq, Kind: kind, Rank: c.rank}
	c.metrics.ObserveRound(kind.String(), len(payload))
	c.logger.Debug("entering round", "seq", r.Seq, "kind", kind, "bytes", len(payload))

	res, err := c.transport.Exchange(ctx, r, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: round %d (%s) on rank %d: %w", apperrors.ErrCoordination, r.Seq, kind, c.rank, err)
	}
	return res, nil
}

// Gather collects one payload per rank at the coordinator, indexed by rank.
// Non-coordinator ranks receive nil.
func (c *Communicator) Gather(ctx context.Context, payload []byte) ([][]byte, error) {
	res, err := c.exchange(ctx, KindGather, payload)
	if err != nil {
		return nil, err
	}
	if c.Role() != RoleCoordinator {
		return nil, nil
	}
	if len(res) != c.size {
		return nil, apperrors.Coordinationf(apperrors.ErrCoordination, "gather round %d returned %d payloads for %d ranks", c.seq, len(res), c.size)
	}
	return res, nil
}

// Broadcast delivers the coordinator's payload to every rank. The payload
// argument is ignored on non-coordinator ranks.
func (c *Communicator) Broadcast(ctx context.Context, payload []byte) ([]byte, error) {
	if c.Role() != RoleCoordinator {
		payload = nil
	}
	res, err := c.exchange(ctx, KindBroadcast, payload)
	if err != nil {
		return nil, err
	}
	if c.Role() == RoleCoordinator {
		return payload, nil
	}
	if len(res) != 1 {
		return nil, apperrors.Coordinationf(apperrors.ErrCoordination, "broadcast round %d returned %d payloads", c.seq, len(res))
	}
	return res[0], nil
}

// Gathered is the coordinator's view of a variable-length gather: the
// rank-ordered concatenation of every payload plus per-rank counts and
// prefix-sum displacements into Buf.
type Gathered struct {
	Buf    []byte
	Counts []int
	Displs []int
}

// Part returns rank's slice of Buf.
func (g *Gathered) Part(rank int) []byte {
	return g.Buf[g.Displs[rank] : g.Displs[rank]+g.Counts[rank]]
}

// GatherV gathers variable-length payloads in two rounds: first every rank's
// length, then the payloads, which the coordinator places at prefix-sum
// offsets. A payload whose size differs from its announced length fails with
// ErrLengthMismatch. Non-coordinator ranks receive nil.
func (c *Communicator) GatherV(ctx context.Context, payload []byte) (*Gathered, error) {
	lens, err := c.Gather(ctx, encodeLength(len(payload)))
	if err != nil {
		return nil, err
	}
	parts, err := c.Gather(ctx, payload)
	if err != nil {
		return nil, err
	}
	if c.Role() != RoleCoordinator {
		return nil, nil
	}

	g := &Gathered{
		Counts: make([]int, c.size),
		Displs: make([]int, c.size),
	}
	total := 0
	for r := 0; r < c.size; r++ {
		n, err := decodeLength(lens[r])
		if err != nil {
			return nil, fmt.Errorf("length announced by rank %d: %w", r, err)
		}
		if len(parts[r]) != n {
			return nil, apperrors.Coordinationf(apperrors.ErrLengthMismatch,
				"rank %d announced %d bytes, sent %d", r, n, len(parts[r]))
		}
		g.Counts[r] = n
		g.Displs[r] = total
		total += n
	}
	g.Buf = make([]byte, total)
	for r := 0; r < c.size; r++ {
		copy(g.Buf[g.Displs[r]:], parts[r])
	}
	return g, nil
}

// BroadcastV broadcasts the coordinator's payload in two rounds: its length,
// then (when non-empty) its bytes. Every rank checks the received size
// against the announced length.
func (c *Communicator) BroadcastV(ctx context.Context, payload []byte) ([]byte, error) {
	var lenBuf []byte
	if c.Role() == RoleCoordinator {
		lenBuf = encodeLength(len(payload))
	}
	got, err := c.Broadcast(ctx, lenBuf)
	if err != nil {
		return nil, err
	}
	n, err := decodeLength(got)
	if err != nil {
		return nil, fmt.Errorf("broadcast length: %w", err)
	}
	if n == 0 {
		return []byte{}, nil
	}
	body, err := c.Broadcast(ctx, payload)
	if err != nil {
		return nil, err
	}
	if len(body) != n {
		return nil, apperrors.Coordinationf(apperrors.ErrLengthMismatch,
			"broadcast announced %d bytes, received %d", n, len(body))
	}
	return body, nil
}

func encodeLength(n int) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(n))
}

func decodeLength(b []byte) (int, error) {
	if len(b) != 8 {
		return 0, apperrors.Coordinationf(apperrors.ErrMalformedPayload, "length field is %d bytes, want 8", len(b))
	}
	n := binary.BigEndian.Uint64(b)
	if n > maxPayload {
		return 0, apperrors.Coordinationf(apperrors.ErrMalformedPayload, "length %d exceeds limit %d", n, maxPayload)
	}
	return int(n), nil
}

// maxPayload bounds a single announced payload.
const maxPayload uint64 = 1 << 40
