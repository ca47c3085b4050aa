// Package shard assigns documents to ranks. The assignment is static: it
// depends only on the document count and the number of ranks, so every rank
// computes the same ranges without communicating.
package shard

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
)

// Range is the half-open interval [Start, End) of document IDs owned by one
// rank.
type Range struct {
	Start int
	End   int
}

// Len returns the number of documents in r.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether document id falls in r.
func (r Range) Contains(id int) bool {
	return id >= r.Start && id < r.End
}

// Partition splits n documents over w ranks into contiguous ranges whose
// sizes differ by at most one; the first n%w ranks take the extra document.
// With n < w the surplus ranks get empty ranges.
func Partition(n, w int) ([]Range, error) {
	if err := check(n, w); err != nil {
		return nil, err
	}
	ranges := make([]Range, w)
	for rank := range ranges {
		ranges[rank] = rangeFor(n, w, rank)
	}
	return ranges, nil
}

func rangeFor(n, w, rank int) Range {
	base, extra := n/w, n%w
	start := rank*base + min(rank, extra)
	size := base
	if rank < extra {
		size++
	}
	return Range{Start: start, End: start + size}
}

func check(n, w int) error {
	if w <= 0 {
		return fmt.Errorf("worker count must be positive, got %d: %w", w, apperrors.ErrInvalidInput)
	}
	if n < 0 {
		return fmt.Errorf("document count must not be negative, got %d: %w", n, apperrors.ErrInvalidInput)
	}
	return nil
}
