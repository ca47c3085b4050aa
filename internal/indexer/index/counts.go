package index

import (
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/tokenizer"
)

// Counts maps a term to its number of occurrences in one document.
type Counts map[string]int

// DocCounts is the term frequency table of one document.
type DocCounts struct {
	Doc    document.Document
	Counts Counts
}

// LocalCounts holds a worker's documents in partition order.
type LocalCounts []DocCounts

// CountTokens reduces tokens to a frequency table. The table is pre-sized
// from the token count.
func CountTokens(tokens []tokenizer.Token) Counts {
	counts := make(Counts, len(tokens))
	for _, tok := range tokens {
		counts[tok.Term]++
	}
	return counts
}
