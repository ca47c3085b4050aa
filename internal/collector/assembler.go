package collector

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/matrix"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/rows"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
)

// Assembler writes the gathered frames of every rank, indexed by rank, into
// m.
type Assembler interface {
	Assemble(m *matrix.Matrix, frames [][]byte) error
}

// NewAssembler returns the Assembler for enc. ranges is the partition the
// frames were produced under.
func NewAssembler(enc rows.Encoding, ranges []shard.Range) (Assembler, error) {
	switch enc {
	case rows.EncodingDense:
		return &denseAssembler{ranges: ranges}, nil
	case rows.EncodingSparse:
		return &sparseAssembler{ranges: ranges}, nil
	default:
		return nil, fmt.Errorf("encoding %s: %w", enc, apperrors.ErrInvalidInput)
	}
}

type denseAssembler struct {
	ranges []shard.Range
}

func (a *denseAssembler) Assemble(m *matrix.Matrix, frames [][]byte) error {
	_, width := m.Dims()
	if len(frames) != len(a.ranges) {
		return apperrors.Coordinationf(apperrors.ErrCoordination, "%d frames for %d ranks", len(frames), len(a.ranges))
	}
	for rank, frame := range frames {
		b, err := decode(frame, width, rows.EncodingDense, rank)
		if err != nil {
			return err
		}
		r := a.ranges[rank]
		if b.Rows != r.Len() || (r.Len() > 0 && b.FirstDoc != r.Start) {
			return apperrors.Coordinationf(apperrors.ErrCoordination,
				"rank %d sent %d rows from document %d, partition is [%d,%d)", rank, b.Rows, b.FirstDoc, r.Start, r.End)
		}
		for i := 0; i < b.Rows; i++ {
			copy(m.Row(r.Start+i), b.Row(i))
		}
	}
	return nil
}

type sparseAssembler struct {
	ranges []shard.Range
}

func (a *sparseAssembler) Assemble(m *matrix.Matrix, frames [][]byte) error {
	_, width := m.Dims()
	if len(frames) != len(a.ranges) {
		return apperrors.Coordinationf(apperrors.ErrCoordination, "%d frames for %d ranks", len(frames), len(a.ranges))
	}
	runs := make([][]rows.Triplet, len(frames))
	for rank, frame := range frames {
		b, err := decode(frame, width, rows.EncodingSparse, rank)
		if err != nil {
			return err
		}
		r := a.ranges[rank]
		for _, t := range b.Triplets {
			if !r.Contains(t.Doc) {
				return apperrors.Coordinationf(apperrors.ErrCoordination,
					"rank %d sent document %d outside its partition [%d,%d)", rank, t.Doc, r.Start, r.End)
			}
		}
		runs[rank] = b.Triplets
	}
	return fill(m, Merge(runs))
}

// fill scans cells in (doc, col) order. Each row's cursor only moves
// forward: columns between cells are zeroed, a column at or behind the
// cursor is a duplicate or out-of-order cell.
func fill(m *matrix.Matrix, cells []rows.Triplet) error {
	nrows, width := m.Dims()
	next := 0
	for doc := 0; doc < nrows; doc++ {
		row := m.Row(doc)
		cursor := 0
		for ; next < len(cells) && cells[next].Doc == doc; next++ {
			t := cells[next]
			if t.Col < cursor {
				return apperrors.Coordinationf(apperrors.ErrMalformedPayload,
					"document %d: column %d repeated or out of order", doc, t.Col)
			}
			for ; cursor < t.Col; cursor++ {
				row[cursor] = 0
			}
			m.Set(doc, cursor, t.Count)
			cursor++
		}
		for ; cursor < width; cursor++ {
			row[cursor] = 0
		}
	}
	if next != len(cells) {
		return apperrors.Coordinationf(apperrors.ErrMalformedPayload,
			"cell for document %d is out of order or outside %d rows", cells[next].Doc, nrows)
	}
	return nil
}

func decode(frame []byte, width int, want rows.Encoding, rank int) (rows.Block, error) {
	b, err := rows.Unmarshal(frame, width)
	if err != nil {
		return rows.Block{}, fmt.Errorf("frame from rank %d: %w", rank, err)
	}
	if b.Encoding != want {
		return rows.Block{}, apperrors.Coordinationf(apperrors.ErrMalformedPayload,
			"rank %d sent %s rows, run uses %s", rank, b.Encoding, want)
	}
	return b, nil
}
