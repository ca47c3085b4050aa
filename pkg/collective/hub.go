package collective

import (
	"bytes"
	"context"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
)

// Hub is an in-memory rendezvous point for the rounds of a fixed-size group.
// It is the Transport of the local (goroutine) cluster and backs the
// coordinator side of the TCP transport.
type Hub struct {
	size   int
	mu     sync.Mutex
	rounds map[uint64]*hubRound
}

type hubRound struct {
	kind     Kind
	payloads [][]byte
	arrived  []bool
	count    int
	left     int
	done     chan struct{}
}

// NewHub creates a Hub for size ranks.
func NewHub(size int) *Hub {
	return &Hub{
		size:   size,
		rounds: make(map[uint64]*hubRound),
	}
}

// Exchange implements Transport.
func (h *Hub) Exchange(ctx context.Context, r Round, payload []byte) ([][]byte, error) {
	if r.Rank < 0 || r.Rank >= h.size {
		return nil, apperrors.Coordinationf(apperrors.ErrCoordination, "rank %d outside group of %d", r.Rank, h.size)
	}

	h.mu.Lock()
	rd, ok := h.rounds[r.Seq]
	if !ok {
		rd = &hubRound{
			kind:     r.Kind,
			payloads: make([][]byte, h.size),
			arrived:  make([]bool, h.size),
			done:     make(chan struct{}),
		}
		h.rounds[r.Seq] = rd
	}
	if rd.kind != r.Kind {
		h.mu.Unlock()
		return nil, apperrors.Coordinationf(apperrors.ErrCoordination,
			"round %d: rank %d entered %s, group is in %s", r.Seq, r.Rank, r.Kind, rd.kind)
	}
	if rd.arrived[r.Rank] {
		h.mu.Unlock()
		return nil, apperrors.Coordinationf(apperrors.ErrCoordination, "round %d: rank %d entered twice", r.Seq, r.Rank)
	}
	rd.arrived[r.Rank] = true
	rd.payloads[r.Rank] = payload
	rd.count++
	if rd.count == h.size {
		close(rd.done)
	}
	h.mu.Unlock()

	select {
	case <-rd.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var res [][]byte
	switch {
	case r.Rank == Coordinator:
		res = make([][]byte, h.size)
		copy(res, rd.payloads)
	case r.Kind == KindBroadcast:
		res = [][]byte{bytes.Clone(rd.payloads[Coordinator])}
	}

	h.mu.Lock()
	rd.left++
	if rd.left == h.size {
		delete(h.rounds, r.Seq)
	}
	h.mu.Unlock()
	return res, nil
}

// pending reports how many rounds are still open.
func (h *Hub) pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rounds)
}

// Close implements Transport.
func (h *Hub) Close() error { return nil }
