// Package matrix holds the assembled document-term matrix.
package matrix

// Matrix is a dense documents × terms table of counts. Rows follow input
// document order, columns follow the sorted vocabulary.
type Matrix struct {
	Labels []string
	Terms  []string
	counts []uint32
}

// New allocates a zeroed matrix.
func New(labels, terms []string) *Matrix {
	return &Matrix{
		Labels: labels,
		Terms:  terms,
		counts: make([]uint32, len(labels)*len(terms)),
	}
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (rows, cols int) {
	return len(m.Labels), len(m.Terms)
}

// Set stores the count of column col in row doc.
func (m *Matrix) Set(doc, col int, v uint32) {
	m.counts[doc*len(m.Terms)+col] = v
}

// Row returns row doc. The slice aliases the matrix.
func (m *Matrix) Row(doc int) []uint32 {
	w := len(m.Terms)
	return m.counts[doc*w : (doc+1)*w]
}

// NonZero calls fn for every non-zero cell in row-major order.
func (m *Matrix) NonZero(fn func(doc, col int, v uint32) error) error {
	w := len(m.Terms)
	for i, v := range m.counts {
		if v == 0 {
			continue
		}
		if err := fn(i/w, i%w, v); err != nil {
			return err
		}
	}
	return nil
}
