// Package index builds per-document term frequency tables for a worker's
// partition and the term → column index used to encode them.
package index

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/metrics"
)

// Counter tokenizes and counts documents.
type Counter struct {
	loader  document.Loader
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCounter creates a Counter. m may be nil.
func NewCounter(loader document.Loader, m *metrics.Metrics) *Counter {
	return &Counter{
		loader:  loader,
		metrics: m,
		logger:  slog.Default().With("component", "counter"),
	}
}

// CountDocument returns the frequency table of d. A document that cannot be
// read yields an empty table, so it still occupies its row as all zeros.
func (c *Counter) CountDocument(d document.Document) Counts {
	text, err := c.loader.Load(d)
	if err != nil {
		c.logger.Warn("document unreadable, counting as empty",
			"doc_id", d.ID,
			"path", d.Path,
			"error", err,
		)
		c.observe("unreadable", 0)
		return Counts{}
	}
	tokens := tokenizer.Tokenize(text)
	c.observe("ok", len(tokens))
	return CountTokens(tokens)
}

// CountAll counts docs in order. It stops early only when ctx is cancelled.
func (c *Counter) CountAll(ctx context.Context, docs []document.Document) (LocalCounts, error) {
	local := make(LocalCounts, 0, len(docs))
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		local = append(local, DocCounts{Doc: d, Counts: c.CountDocument(d)})
	}
	c.logger.Debug("partition counted", "documents", len(local))
	return local, nil
}

func (c *Counter) observe(status string, tokens int) {
	if c.metrics == nil {
		return
	}
	c.metrics.DocumentsTotal.WithLabelValues(status).Inc()
	c.metrics.TokensTotal.Add(float64(tokens))
}
