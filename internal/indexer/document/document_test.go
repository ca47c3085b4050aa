package document

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"docs/a.txt", "a.txt"},
		{"/abs/path/b.txt", "b.txt"},
		{`C:\corpus\c.txt`, "c.txt"},
		{`mixed/dir\d.txt`, "d.txt"},
		{"plain.txt", "plain.txt"},
		{"dir/", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.path), tt.path)
	}
}

func TestFromPaths(t *testing.T) {
	docs := FromPaths([]string{"x/a", "y/b"})
	assert.Equal(t, []Document{{ID: 0, Path: "x/a"}, {ID: 1, Path: "y/b"}}, docs)
	assert.Equal(t, []string{"a", "b"}, Labels(docs))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(txt, []byte("<b>bold</b> text"), 0o644))

	data, err := Loader{StripHTML: true}.Load(Document{Path: txt})
	require.NoError(t, err)
	assert.Equal(t, "<b>bold</b> text", string(data))

	_, err = Loader{}.Load(Document{ID: 3, Path: filepath.Join(dir, "missing.txt")})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadHTML(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.HTML")
	body := `<html><head><title>ignored</title><style>p{color:red}</style></head>
<body><p>Hello <b>world</b></p><script>var x = 1;</script></body></html>`
	require.NoError(t, os.WriteFile(page, []byte(body), 0o644))

	data, err := Loader{StripHTML: true}.Load(Document{Path: page})
	require.NoError(t, err)
	assert.Contains(t, string(data), "Hello world")
	assert.NotContains(t, string(data), "color")
	assert.NotContains(t, string(data), "var x")

	raw, err := Loader{}.Load(Document{Path: page})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<script>")
}

func TestPathListKeepsEmptyPaths(t *testing.T) {
	paths := []string{"corpus/a.txt", "", "odd\x00name.txt", ""}
	got, err := DecodePaths(EncodePaths(paths))
	require.NoError(t, err)
	assert.Equal(t, paths, got)

	got, err = DecodePaths(EncodePaths(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodePathsTruncated(t *testing.T) {
	buf := EncodePaths([]string{"corpus/a.txt"})
	_, err := DecodePaths(buf[:len(buf)-1])
	assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Loader{}.Load(Document{ID: 1, Path: ""})
	require.Error(t, err)
	assert.Equal(t, "", Label(""))
}
