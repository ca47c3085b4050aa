// Package vocab agrees on one global vocabulary across all ranks.
//
// Each rank proposes the distinct terms of its own documents. The
// coordinator gathers every proposal, merges them into a sorted,
// duplicate-free Agreed vocabulary and broadcasts it back, so every rank ends
// up with a byte-identical copy that defines the matrix columns.
package vocab

import (
	"crypto/sha256"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/index"
)

// Proposal is one rank's local vocabulary, sorted and duplicate-free.
type Proposal struct {
	Terms []string
}

// Agreed is the global vocabulary. Terms are sorted byte-wise and
// duplicate-free; a term's position is its column.
type Agreed struct {
	Terms []string
}

// Propose collects the union of terms over a rank's documents.
func Propose(local index.LocalCounts) Proposal {
	seen := make(map[string]struct{})
	for _, dc := range local {
		for term := range dc.Counts {
			seen[term] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	slices.Sort(terms)
	return Proposal{Terms: terms}
}

// Merge builds the Agreed vocabulary from the concatenated encoded
// proposals of every rank.
func Merge(buf []byte) (Agreed, error) {
	terms, err := Decode(buf)
	if err != nil {
		return Agreed{}, err
	}
	slices.Sort(terms)
	return Agreed{Terms: slices.Compact(terms)}, nil
}

// Len returns the number of columns.
func (a Agreed) Len() int {
	return len(a.Terms)
}

// Digest returns the SHA-256 of the encoded vocabulary.
func (a Agreed) Digest() [sha256.Size]byte {
	h := sha256.New()
	for _, t := range a.Terms {
		h.Write([]byte(t))
		h.Write([]byte{Separator})
	}
	var sum [sha256.Size]byte
	h.Sum(sum[:0])
	return sum
}
