// Package document identifies input documents and loads their text.
package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is one input file. ID is its position in the input order and is
// the matrix row it lands in.
type Document struct {
	ID   int
	Path string
}

// FromPaths numbers paths in order.
func FromPaths(paths []string) []Document {
	docs := make([]Document, len(paths))
	for i, p := range paths {
		docs[i] = Document{ID: i, Path: p}
	}
	return docs
}

// Label returns the row label of a path: its final element, splitting on
// both '/' and '\'.
func Label(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Labels returns the row labels of docs in order.
func Labels(docs []Document) []string {
	labels := make([]string, len(docs))
	for i, d := range docs {
		labels[i] = Label(d.Path)
	}
	return labels
}

// Loader reads document text from the local filesystem.
type Loader struct {
	// StripHTML extracts the visible text of .html and .htm files instead of
	// tokenizing their markup.
	StripHTML bool
}

// Load returns the text of d.
func (l Loader) Load(d Document) ([]byte, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, fmt.Errorf("reading document %d (%s): %w", d.ID, d.Path, err)
	}
	if l.StripHTML && isHTML(d.Path) {
		return extractText(data)
	}
	return data, nil
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

func extractText(data []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	doc.Find("script,style,noscript").Remove()

	var sb strings.Builder
	doc.Find("body").Each(func(i int, s *goquery.Selection) {
		sb.WriteString(s.Text())
		sb.WriteByte(' ')
	})
	if sb.Len() == 0 {
		sb.WriteString(doc.Text())
	}
	return []byte(sb.String()), nil
}
