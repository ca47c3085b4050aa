package collective

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/rpc"
)

const (
	exchangeMethod = "Collective.Exchange"
	shutdownGrace  = 5 * time.Second
)

// ExchangeArgs is the wire request of one remote round.
type ExchangeArgs struct {
	Round   Round  `json:"round"`
	Payload []byte `json:"payload"`
}

// ExchangeReply is the wire reply of one remote round.
type ExchangeReply struct {
	Payloads [][]byte `json:"payloads"`
}

// TCPCoordinator hosts the group's Hub behind an RPC server. The coordinator
// rank exchanges with the Hub directly; every other rank reaches it through
// a TCPWorker.
type TCPCoordinator struct {
	hub    *Hub
	server *rpc.Server
	addr   net.Addr
	logger *slog.Logger
}

// ListenTCP starts the coordinator side of the TCP transport on addr.
func ListenTCP(addr string, size int) (*TCPCoordinator, error) {
	c := &TCPCoordinator{
		hub:    NewHub(size),
		server: rpc.NewServer(),
		logger: slog.Default().With("component", "tcp-coordinator"),
	}
	c.server.Register(exchangeMethod, c.handleExchange)
	bound, err := c.server.Start(addr)
	if err != nil {
		return nil, fmt.Errorf("starting coordinator transport: %w", err)
	}
	c.addr = bound
	return c, nil
}

func (c *TCPCoordinator) handleExchange(ctx context.Context, raw json.RawMessage) (any, error) {
	var args ExchangeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decoding exchange args: %w", err)
	}
	if args.Round.Rank == Coordinator {
		return nil, apperrors.Coordinationf(apperrors.ErrCoordination, "remote peer claims coordinator rank")
	}
	res, err := c.hub.Exchange(ctx, args.Round, args.Payload)
	if err != nil {
		c.logger.Error("remote round failed", "seq", args.Round.Seq, "rank", args.Round.Rank, "error", err)
		return nil, err
	}
	return ExchangeReply{Payloads: res}, nil
}

// Addr returns the bound listen address.
func (c *TCPCoordinator) Addr() net.Addr {
	return c.addr
}

// Exchange implements Transport for the coordinator rank.
func (c *TCPCoordinator) Exchange(ctx context.Context, r Round, payload []byte) ([][]byte, error) {
	return c.hub.Exchange(ctx, r, payload)
}

// Close stops accepting ranks and waits up to shutdownGrace for connected
// ranks to hang up, so replies to the final round are not cut off. Ranks
// still blocked in a round after that fail.
func (c *TCPCoordinator) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	c.server.Shutdown(ctx)
	return nil
}

// TCPWorker is the non-coordinator side of the TCP transport.
type TCPWorker struct {
	client *rpc.Client
}

// DialTCP connects to the coordinator at addr, retrying with backoff for up
// to dialTimeout since the coordinator may start after its workers.
func DialTCP(ctx context.Context, addr string, dialTimeout time.Duration) (*TCPWorker, error) {
	cfg := resilience.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	}
	cfg.MaxAttempts = resilience.AttemptsFor(dialTimeout, cfg)

	var client *rpc.Client
	err := resilience.Retry(ctx, "dial coordinator", cfg, func() error {
		c, err := rpc.Dial(ctx, addr)
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) {
			return resilience.Permanent(err)
		}
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to coordinator %s: %w", addr, err)
	}
	return &TCPWorker{client: client}, nil
}

// Exchange implements Transport.
func (w *TCPWorker) Exchange(ctx context.Context, r Round, payload []byte) ([][]byte, error) {
	var reply ExchangeReply
	if err := w.client.Call(ctx, exchangeMethod, ExchangeArgs{Round: r, Payload: payload}, &reply); err != nil {
		return nil, err
	}
	return reply.Payloads, nil
}

// Close implements Transport.
func (w *TCPWorker) Close() error {
	return w.client.Close()
}
