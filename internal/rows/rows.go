// Package rows re-expresses a rank's local counts against the global column
// index and serializes them for the collect round.
//
// Two encodings exist. Dense sends one fixed-width vector of |V| counts per
// document, so its size is known to the coordinator in advance. Sparse sends
// only the non-zero cells as (doc, col, count) triplets sorted by doc, then
// col. The encoding is chosen once per run and used by every rank.
package rows

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
)

// Encoding selects the row representation.
type Encoding uint8

const (
	EncodingDense Encoding = iota + 1
	EncodingSparse
)

func (e Encoding) String() string {
	switch e {
	case EncodingDense:
		return "dense"
	case EncodingSparse:
		return "sparse"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// ParseEncoding parses "dense" or "sparse".
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "dense":
		return EncodingDense, nil
	case "sparse":
		return EncodingSparse, nil
	default:
		return 0, fmt.Errorf("unknown row encoding %q: %w", s, apperrors.ErrInvalidInput)
	}
}

// Triplet is one non-zero matrix cell.
type Triplet struct {
	Doc   int
	Col   int
	Count uint32
}

// Block is the encoded contribution of one rank. Exactly one of the dense
// fields (Rows, Values) or Triplets is meaningful, selected by Encoding.
type Block struct {
	Encoding Encoding
	// FirstDoc is the ID of the first document of the rank's partition.
	FirstDoc int
	// Width is the vocabulary size every dense row is padded to.
	Width int

	// Rows is the number of dense rows; Values holds them row-major.
	Rows   int
	Values []uint32

	Triplets []Triplet
}

// Records returns the number of rows (dense) or cells (sparse) in b.
func (b Block) Records() int {
	if b.Encoding == EncodingDense {
		return b.Rows
	}
	return len(b.Triplets)
}

// Row returns dense row i.
func (b Block) Row(i int) []uint32 {
	return b.Values[i*b.Width : (i+1)*b.Width]
}

// Encode maps every term of local to its column. A term missing from
// columns means the rank's vocabulary diverged from the agreed one and is
// fatal.
func Encode(enc Encoding, local index.LocalCounts, columns *index.ColumnIndex) (Block, error) {
	b := Block{Encoding: enc, Width: columns.Len()}
	if len(local) > 0 {
		b.FirstDoc = local[0].Doc.ID
	}

	switch enc {
	case EncodingDense:
		b.Rows = len(local)
		b.Values = make([]uint32, b.Rows*b.Width)
		for i, dc := range local {
			row := b.Values[i*b.Width : (i+1)*b.Width]
			for term, n := range dc.Counts {
				col, ok := columns.Lookup(term)
				if !ok {
					return Block{}, unknownTerm(dc.Doc.ID, term)
				}
				row[col] = uint32(n)
			}
		}
	case EncodingSparse:
		size := 0
		for _, dc := range local {
			size += len(dc.Counts)
		}
		b.Triplets = make([]Triplet, 0, size)
		for _, dc := range local {
			for term, n := range dc.Counts {
				col, ok := columns.Lookup(term)
				if !ok {
					return Block{}, unknownTerm(dc.Doc.ID, term)
				}
				if n > 0 {
					b.Triplets = append(b.Triplets, Triplet{Doc: dc.Doc.ID, Col: col, Count: uint32(n)})
				}
			}
		}
		slices.SortFunc(b.Triplets, CompareTriplets)
	default:
		return Block{}, fmt.Errorf("encoding %s: %w", enc, apperrors.ErrInvalidInput)
	}
	return b, nil
}

// CompareTriplets orders cells by document, then column.
func CompareTriplets(a, b Triplet) int {
	if c := cmp.Compare(a.Doc, b.Doc); c != 0 {
		return c
	}
	return cmp.Compare(a.Col, b.Col)
}

func unknownTerm(doc int, term string) error {
	return apperrors.Coordinationf(apperrors.ErrUnknownTerm, "document %d: term %q", doc, term)
}
