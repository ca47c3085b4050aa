// Package table serializes a matrix as CSV: a "doc" header followed by one
// column per term, then one line per document with its label and counts.
// Fields are written verbatim; terms and labels never contain commas or
// line breaks produced by the tokenizer, and labels are taken as given.
package table

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/matrix"
)

// Write streams m to w.
func Write(w io.Writer, m *matrix.Matrix) error {
	bw := bufio.NewWriterSize(w, 64*1024)

	bw.WriteString("doc")
	for _, term := range m.Terms {
		bw.WriteByte(',')
		bw.WriteString(term)
	}
	bw.WriteByte('\n')

	nrows, _ := m.Dims()
	num := make([]byte, 0, 20)
	for doc := 0; doc < nrows; doc++ {
		bw.WriteString(m.Labels[doc])
		for _, v := range m.Row(doc) {
			bw.WriteByte(',')
			num = strconv.AppendUint(num[:0], uint64(v), 10)
			bw.Write(num)
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// WriteFile writes m to path through a temporary file in the same directory
// and renames it into place, so path only ever holds a complete table.
// Missing parent directories are created.
func WriteFile(path string, m *matrix.Matrix) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp output file: %w", err)
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath)

	if err := Write(f, m); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting output permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming output file: %w", err)
	}
	return nil
}
