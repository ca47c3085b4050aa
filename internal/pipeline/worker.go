// Package pipeline runs one rank of a matrix build from the document list to
// the assembled matrix, and supervises an in-process group of ranks.
package pipeline

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/collector"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/matrix"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/rows"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/vocab"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/collective"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/tracing"
)

// Phase names, used for spans and the phase duration histogram.
const (
	PhaseBroadcastDocuments = "broadcast_documents"
	PhaseCount              = "count"
	PhaseSynchronize        = "synchronize"
	PhaseEncode             = "encode"
	PhaseCollect            = "collect"
)

// Options configure a build. Every rank of a run must use the same
// Encoding and VerifyVocabulary.
type Options struct {
	RunID            string
	Encoding         rows.Encoding
	VerifyVocabulary bool
	Loader           document.Loader
}

// Result is what a rank knows after a build. Matrix is only set on the
// coordinator.
type Result struct {
	Matrix    *matrix.Matrix
	Documents int
	Terms     int
}

// Worker runs the build for one rank.
type Worker struct {
	comm    *collective.Communicator
	role    collective.Role
	opts    Options
	counter *index.Counter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWorker creates a Worker over comm. m may be nil.
func NewWorker(comm *collective.Communicator, opts Options, m *metrics.Metrics) *Worker {
	role := comm.Role()
	return &Worker{
		comm:    comm,
		role:    role,
		opts:    opts,
		counter: index.NewCounter(opts.Loader, m),
		metrics: m,
		logger: slog.Default().With(
			"component", "pipeline",
			"run_id", opts.RunID,
			"rank", comm.Rank(),
			"role", role,
		),
	}
}

// Run executes every phase. paths is only read on the coordinator, which
// broadcasts it; other ranks may pass nil.
func (w *Worker) Run(ctx context.Context, paths []string) (*Result, error) {
	ctx, root := tracing.StartSpan(ctx, "build", w.opts.RunID)
	root.SetAttr("rank", w.comm.Rank())
	defer func() {
		root.End()
		if w.role == collective.RoleCoordinator {
			root.Log(w.logger)
		}
	}()

	var docs []document.Document
	err := w.phase(ctx, PhaseBroadcastDocuments, func(ctx context.Context) error {
		var err error
		docs, err = w.broadcastDocuments(ctx, paths)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		w.logger.Info("no documents, nothing to build")
		res := &Result{}
		if w.role == collective.RoleCoordinator {
			res.Matrix = matrix.New(nil, nil)
		}
		return res, nil
	}

	ranges, err := shard.Partition(len(docs), w.comm.Size())
	if err != nil {
		return nil, err
	}
	mine := ranges[w.comm.Rank()]
	w.logger.Debug("partition assigned", "start", mine.Start, "end", mine.End)

	var local index.LocalCounts
	err = w.phase(ctx, PhaseCount, func(ctx context.Context) error {
		var err error
		local, err = w.counter.CountAll(ctx, docs[mine.Start:mine.End])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}

	var agreed vocab.Agreed
	err = w.phase(ctx, PhaseSynchronize, func(ctx context.Context) error {
		var err error
		agreed, err = vocab.Synchronize(ctx, w.comm, w.role, vocab.Propose(local),
			vocab.Options{Verify: w.opts.VerifyVocabulary})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("synchronizing vocabulary: %w", err)
	}
	if w.metrics != nil {
		w.metrics.VocabularyTerms.Set(float64(agreed.Len()))
	}

	var block rows.Block
	err = w.phase(ctx, PhaseEncode, func(ctx context.Context) error {
		var err error
		block, err = rows.Encode(w.opts.Encoding, local, index.NewColumnIndex(agreed.Terms))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("encoding rows: %w", err)
	}
	if w.metrics != nil {
		w.metrics.EncodedRecordsTotal.WithLabelValues(block.Encoding.String()).Add(float64(block.Records()))
	}

	var m *matrix.Matrix
	err = w.phase(ctx, PhaseCollect, func(ctx context.Context) error {
		var err error
		m, err = collector.Collect(ctx, w.comm, w.role, block, collector.Layout{
			Labels: document.Labels(docs),
			Terms:  agreed.Terms,
			Ranges: ranges,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting rows: %w", err)
	}

	w.logger.Info("build finished",
		"documents", len(docs),
		"local_documents", len(local),
		"terms", agreed.Len(),
	)
	return &Result{Matrix: m, Documents: len(docs), Terms: agreed.Len()}, nil
}

// broadcastDocuments sends the coordinator's document list to every rank:
// first the count, then, when non-zero, the packed paths. Paths are opaque
// here; one that cannot be read becomes an all-zero row later.
func (w *Worker) broadcastDocuments(ctx context.Context, paths []string) ([]document.Document, error) {
	var countBuf, packed []byte
	if w.role == collective.RoleCoordinator {
		countBuf = binary.BigEndian.AppendUint64(nil, uint64(len(paths)))
		packed = document.EncodePaths(paths)
	}

	got, err := w.comm.Broadcast(ctx, countBuf)
	if err != nil {
		return nil, fmt.Errorf("broadcasting document count: %w", err)
	}
	if len(got) != 8 {
		return nil, apperrors.Coordinationf(apperrors.ErrMalformedPayload, "document count is %d bytes", len(got))
	}
	n := binary.BigEndian.Uint64(got)
	if n == 0 {
		return nil, nil
	}

	body, err := w.comm.BroadcastV(ctx, packed)
	if err != nil {
		return nil, fmt.Errorf("broadcasting document list: %w", err)
	}
	if w.role == collective.RoleCoordinator {
		return document.FromPaths(paths), nil
	}
	received, err := document.DecodePaths(body)
	if err != nil {
		return nil, fmt.Errorf("decoding document list: %w", err)
	}
	if uint64(len(received)) != n {
		return nil, apperrors.Coordinationf(apperrors.ErrLengthMismatch,
			"document list holds %d paths, count announced %d", len(received), n)
	}
	return document.FromPaths(received), nil
}

func (w *Worker) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartChildSpan(ctx, name)
	err := fn(ctx)
	d := span.End()
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	if w.metrics != nil {
		w.metrics.PhaseDuration.WithLabelValues(name).Observe(d.Seconds())
	}
	w.logger.Debug("phase done", "phase", name, "duration_ms", d.Milliseconds(), "ok", err == nil)
	return err
}
