package index

// ColumnIndex maps each term of the global vocabulary to its column.
type ColumnIndex struct {
	columns map[string]int
}

// NewColumnIndex indexes terms by position. terms must be duplicate-free.
func NewColumnIndex(terms []string) *ColumnIndex {
	columns := make(map[string]int, len(terms))
	for i, term := range terms {
		columns[term] = i
	}
	return &ColumnIndex{columns: columns}
}

// Lookup returns the column of term.
func (ci *ColumnIndex) Lookup(term string) (int, bool) {
	col, ok := ci.columns[term]
	return col, ok
}

// Len returns the number of columns.
func (ci *ColumnIndex) Len() int {
	return len(ci.columns)
}
