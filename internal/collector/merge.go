package collector

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/rows"
)

// Merge combines per-rank runs, each sorted by (doc, col), into one sorted
// sequence.
func Merge(runs [][]rows.Triplet) []rows.Triplet {
	total := 0
	h := &cursorHeap{}
	for _, run := range runs {
		total += len(run)
		if len(run) > 0 {
			*h = append(*h, cursor{run: run})
		}
	}
	heap.Init(h)

	merged := make([]rows.Triplet, 0, total)
	for h.Len() > 0 {
		top := &(*h)[0]
		merged = append(merged, top.run[top.pos])
		top.pos++
		if top.pos == len(top.run) {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
	}
	return merged
}

type cursor struct {
	run []rows.Triplet
	pos int
}

type cursorHeap []cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	return rows.CompareTriplets(h[i].run[h[i].pos], h[j].run[h[j].pos]) < 0
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x interface{}) {
	*h = append(*h, x.(cursor))
}

func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
