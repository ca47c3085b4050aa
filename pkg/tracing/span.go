// Package tracing times a build as a tree of spans carried through the
// context: one root span per run and one child per pipeline phase. The
// coordinator logs the finished tree.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanKey struct{}

// Span is one timed section of a run.
type Span struct {
	Name     string
	RunID    string
	Start    time.Time
	Duration time.Duration
	Children []*Span
	Attrs    map[string]any

	mu sync.Mutex
}

func newSpan(name, runID string) *Span {
	return &Span{Name: name, RunID: runID, Start: time.Now(), Attrs: map[string]any{}}
}

// StartSpan opens the root span of a run.
func StartSpan(ctx context.Context, name, runID string) (context.Context, *Span) {
	span := newSpan(name, runID)
	return context.WithValue(ctx, spanKey{}, span), span
}

// StartChildSpan opens a span under the one in ctx, inheriting its run ID.
// Without a parent the span stands alone.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	var child *Span
	if parent == nil {
		child = newSpan(name, "")
	} else {
		child = newSpan(name, parent.RunID)
		parent.mu.Lock()
		parent.Children = append(parent.Children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, child), child
}

// End stops the clock and returns the span's duration.
func (s *Span) End() time.Duration {
	s.Duration = time.Since(s.Start)
	return s.Duration
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext returns the innermost span of ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

// Log writes one record per span, depth first. Child spans are named by
// their path from the root, e.g. "build/count".
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, s.Name)
}

func (s *Span) log(logger *slog.Logger, path string) {
	s.mu.Lock()
	attrs := make([]any, 0, 6+2*len(s.Attrs))
	attrs = append(attrs, "run_id", s.RunID, "phase", path, "duration_ms", s.Duration.Milliseconds())
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	logger.Info("phase timing", attrs...)
	for _, child := range children {
		child.log(logger, path+"/"+child.Name)
	}
}
