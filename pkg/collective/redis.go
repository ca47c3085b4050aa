package collective

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/redis"
)

// RedisTransport exchanges rounds through Redis lists. Every non-coordinator
// rank pushes its payload to an "up" list; the coordinator pops the lists in
// rank order, then pushes the reply onto each rank's "down" list. Keys are
// scoped by run ID, which must be unique per run.
type RedisTransport struct {
	client *pkgredis.Client
	runID  string
	size   int
	ttl    time.Duration
}

// NewRedisTransport creates a transport for one rank. ttl bounds both the
// lifetime of round keys and how long a rank waits for its peers.
func NewRedisTransport(client *pkgredis.Client, runID string, size int, ttl time.Duration) *RedisTransport {
	return &RedisTransport{
		client: client,
		runID:  runID,
		size:   size,
		ttl:    ttl,
	}
}

func (t *RedisTransport) key(seq uint64, dir string, rank int) string {
	return fmt.Sprintf("termmatrix:%s:%d:%s:%d", t.runID, seq, dir, rank)
}

// Exchange implements Transport.
func (t *RedisTransport) Exchange(ctx context.Context, r Round, payload []byte) ([][]byte, error) {
	if r.Rank != Coordinator {
		msg := make([]byte, 0, len(payload)+1)
		msg = append(msg, byte(r.Kind))
		msg = append(msg, payload...)
		if err := t.client.Push(ctx, t.key(r.Seq, "up", r.Rank), msg, t.ttl); err != nil {
			return nil, err
		}
		reply, err := t.client.Pop(ctx, t.key(r.Seq, "down", r.Rank), t.ttl)
		if err != nil {
			return nil, err
		}
		if r.Kind == KindBroadcast {
			return [][]byte{reply}, nil
		}
		return nil, nil
	}

	payloads := make([][]byte, t.size)
	payloads[Coordinator] = payload
	for rank := 1; rank < t.size; rank++ {
		msg, err := t.client.Pop(ctx, t.key(r.Seq, "up", rank), t.ttl)
		if err != nil {
			return nil, err
		}
		if len(msg) == 0 || Kind(msg[0]) != r.Kind {
			return nil, apperrors.Coordinationf(apperrors.ErrCoordination,
				"round %d: rank %d sent a message that is not a %s", r.Seq, rank, r.Kind)
		}
		payloads[rank] = msg[1:]
	}

	reply := []byte{}
	if r.Kind == KindBroadcast {
		reply = payload
	}
	for rank := 1; rank < t.size; rank++ {
		if err := t.client.Push(ctx, t.key(r.Seq, "down", rank), reply, t.ttl); err != nil {
			return nil, err
		}
	}
	return payloads, nil
}

// Finish ends a successful run for rank. A worker reports that it has
// consumed its last reply; the coordinator waits for every report and only
// then sweeps the run's keys, so no reply is deleted before it is read.
func (t *RedisTransport) Finish(ctx context.Context, rank int) error {
	if rank != Coordinator {
		return t.client.Push(ctx, t.doneKey(rank), []byte{1}, t.ttl)
	}
	for r := 1; r < t.size; r++ {
		if _, err := t.client.Pop(ctx, t.doneKey(r), t.ttl); err != nil {
			return fmt.Errorf("waiting for rank %d to finish: %w", r, err)
		}
	}
	_, err := t.Sweep(ctx)
	return err
}

func (t *RedisTransport) doneKey(rank int) string {
	return fmt.Sprintf("termmatrix:%s:done:%d", t.runID, rank)
}

// Sweep removes every key of this run. After a failed run it clears replies
// that will never be collected.
func (t *RedisTransport) Sweep(ctx context.Context) (int64, error) {
	return t.client.FlushByPattern(ctx, fmt.Sprintf("termmatrix:%s:*", t.runID))
}

// Close implements Transport.
func (t *RedisTransport) Close() error {
	return t.client.Close()
}
