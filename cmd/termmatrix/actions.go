package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/rows"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/collective"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/resilience"
	"github.com/urfave/cli/v2"
)

func runAction(c *cli.Context) error {
	start := time.Now()
	paths, out, err := splitArgs(c.Args().Slice())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if out != "" {
		cfg.Run.Output = out
	}
	cfg.Transport.Kind = config.TransportLocal
	if !c.IsSet("run-id") && cfg.Transport.RunID == config.Default().Transport.RunID {
		cfg.Transport.RunID = fmt.Sprintf("run-%d", start.UnixNano())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}

	ctx := logger.WithRunID(c.Context, opts.RunID)
	logger.FromContext(ctx).Info("starting local build",
		"documents", len(paths),
		"workers", cfg.Run.Workers,
		"encoding", opts.Encoding,
	)
	m := metrics.New()
	res, err := pipeline.RunLocal(ctx, paths, cfg.Run.Workers, opts, m)
	if err != nil {
		return err
	}
	return finish(ctx, c, cfg, res, start, m, cfg.Run.Workers)
}

func workerAction(c *cli.Context) error {
	start := time.Now()
	paths, out, err := splitArgs(c.Args().Slice())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if out != "" {
		cfg.Run.Output = out
	}
	if c.IsSet("rank") {
		cfg.Transport.Rank = c.Int("rank")
	}
	if c.IsSet("size") {
		cfg.Transport.Size = c.Int("size")
	}
	if c.IsSet("transport") {
		cfg.Transport.Kind = c.String("transport")
	}
	if c.IsSet("addr") {
		cfg.Transport.Addr = c.String("addr")
	}
	if cfg.Transport.Kind == config.TransportLocal {
		return fmt.Errorf("worker needs --transport tcp or redis: %w", apperrors.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}

	ctx := logger.WithRunID(c.Context, opts.RunID)
	rank, size := cfg.Transport.Rank, cfg.Transport.Size
	transport, err := openTransport(ctx, cfg)
	if err != nil {
		return apperrors.Coordinationf(apperrors.ErrCoordination, "opening %s transport: %v", cfg.Transport.Kind, err)
	}
	m := metrics.New()
	comm, err := collective.New(rank, size, transport, m)
	if err != nil {
		transport.Close()
		return err
	}
	defer comm.Close()
	rt, _ := transport.(*collective.RedisTransport)

	logger.FromContext(ctx).Info("rank starting",
		"rank", rank,
		"size", size,
		"role", comm.Role(),
		"transport", cfg.Transport.Kind,
	)
	if comm.Role() != collective.RoleCoordinator {
		paths = nil
	}
	res, err := pipeline.NewWorker(comm, opts, m).Run(ctx, paths)
	if err != nil {
		if rt != nil && rank == collective.Coordinator {
			sweep(rt)
		}
		return err
	}
	if rt != nil {
		if err := rt.Finish(ctx, rank); err != nil {
			logger.FromContext(ctx).Warn("redis run teardown incomplete", "error", err)
		}
	}
	if comm.Role() != collective.RoleCoordinator {
		pushMetrics(cfg, m, rank)
		return nil
	}
	return finish(ctx, c, cfg, res, start, m, size)
}

// finish runs on the coordinator once the matrix is assembled.
func finish(ctx context.Context, c *cli.Context, cfg *config.Config, res *pipeline.Result, start time.Time, m *metrics.Metrics, workers int) error {
	if err := pipeline.WriteOutput(res, cfg.Run.Output); err != nil {
		return err
	}
	elapsed := time.Since(start)
	logger.FromContext(ctx).Info("matrix written", "output", cfg.Run.Output, "documents", res.Documents, "terms", res.Terms)

	sinks := pipeline.Sinks{Timeout: cfg.Sink.Timeout}
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening matrix sink: %w", err)
	}
	if st != nil {
		defer st.Close()
		sinks.Store = st
	}
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		sinks.Events = producer
	}
	sum := pipeline.Summary{
		RunID:    cfg.Transport.RunID,
		Output:   cfg.Run.Output,
		Encoding: cfg.Run.Encoding,
		Workers:  workers,
		Elapsed:  elapsed,
	}
	if err := pipeline.Publish(ctx, res, sum, sinks); err != nil {
		return err
	}
	pushMetrics(cfg, m, collective.Coordinator)

	fmt.Fprintf(c.App.Writer, "time_sec=%.6g\n", elapsed.Seconds())
	return nil
}

func checkAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := c.Context
	checker := health.NewChecker()

	switch cfg.Transport.Kind {
	case config.TransportTCP:
		checker.Register("transport", health.TCPCheck(cfg.Transport.Addr, health.StatusDown))
	case config.TransportRedis:
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			checker.Register("transport", failed(err))
		} else {
			defer client.Close()
			checker.Register("transport", health.PingCheck(client.Ping, health.StatusDown))
		}
	default:
		checker.Register("transport", health.Skipped("local transport"))
	}

	st, err := store.Open(ctx, cfg)
	switch {
	case err != nil:
		checker.Register("sink", failed(err))
	case st == nil:
		checker.Register("sink", health.Skipped("no sink configured"))
	default:
		defer st.Close()
		checker.Register("sink", health.PingCheck(st.Ping, health.StatusDown))
	}

	if cfg.Kafka.Enabled() {
		for _, broker := range cfg.Kafka.Brokers {
			checker.Register("kafka:"+broker, health.TCPCheck(broker, health.StatusDegraded))
		}
	} else {
		checker.Register("kafka", health.Skipped("events disabled"))
	}

	report := checker.Run(ctx)
	if err := report.WriteJSON(c.App.Writer); err != nil {
		return err
	}
	if report.Status == health.StatusDown {
		return fmt.Errorf("one or more dependencies are down")
	}
	return nil
}

func eventsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled() {
		return fmt.Errorf("kafka.brokers and kafka.topic are required: %w", apperrors.ErrInvalidInput)
	}
	consumer := kafka.NewConsumer(cfg.Kafka, events.HandleMessage(nil))
	defer consumer.Close()
	return consumer.Start(c.Context)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if c.IsSet("workers") {
		cfg.Run.Workers = c.Int("workers")
	}
	if c.IsSet("encoding") {
		cfg.Run.Encoding = c.String("encoding")
	}
	if c.IsSet("out") {
		cfg.Run.Output = c.String("out")
	}
	if c.IsSet("run-id") {
		cfg.Transport.RunID = c.String("run-id")
	}
	if c.IsSet("verify-vocabulary") {
		cfg.Run.VerifyVocabulary = c.Bool("verify-vocabulary")
	}
	if c.IsSet("strip-html") {
		cfg.Run.StripHTML = c.Bool("strip-html")
	}
	return cfg, nil
}

func buildOptions(cfg *config.Config) (pipeline.Options, error) {
	enc, err := rows.ParseEncoding(cfg.Run.Encoding)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		RunID:            cfg.Transport.RunID,
		Encoding:         enc,
		VerifyVocabulary: cfg.Run.VerifyVocabulary,
		Loader:           document.Loader{StripHTML: cfg.Run.StripHTML},
	}, nil
}

func openTransport(ctx context.Context, cfg *config.Config) (collective.Transport, error) {
	tc := cfg.Transport
	switch tc.Kind {
	case config.TransportTCP:
		if tc.Rank == collective.Coordinator {
			return collective.ListenTCP(tc.Addr, tc.Size)
		}
		return collective.DialTCP(ctx, tc.Addr, tc.DialTimeout)
	case config.TransportRedis:
		retry := resilience.RetryConfig{InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
		retry.MaxAttempts = resilience.AttemptsFor(tc.DialTimeout, retry)
		var client *pkgredis.Client
		err := resilience.Retry(ctx, "connect redis", retry, func() error {
			var err error
			client, err = pkgredis.NewClient(cfg.Redis)
			return err
		})
		if err != nil {
			return nil, err
		}
		return collective.NewRedisTransport(client, tc.RunID, tc.Size, tc.RoundTTL), nil
	default:
		return nil, fmt.Errorf("unknown transport %q: %w", tc.Kind, apperrors.ErrInvalidInput)
	}
}

// splitArgs separates document paths from a trailing "--out PATH", which
// flag parsing leaves among the positional arguments.
func splitArgs(args []string) (paths []string, out string, err error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--out" || arg == "-o":
			if i+1 >= len(args) {
				return nil, "", fmt.Errorf("%s needs a path: %w", arg, apperrors.ErrInvalidInput)
			}
			i++
			out = args[i]
		case strings.HasPrefix(arg, "--out="):
			out = strings.TrimPrefix(arg, "--out=")
		default:
			paths = append(paths, arg)
		}
	}
	return paths, out, nil
}

func pushMetrics(cfg *config.Config, m *metrics.Metrics, rank int) {
	if err := m.Push(cfg.Metrics.PushURL, cfg.Metrics.Job, rank); err != nil {
		slog.Warn("metrics push failed", "error", err)
	}
}

func sweep(rt *collective.RedisTransport) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := rt.Sweep(ctx)
	if err != nil {
		slog.Warn("sweeping round keys failed", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("swept leftover round keys", "keys", n)
	}
}

func failed(err error) health.Check {
	return func(context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
	}
}
