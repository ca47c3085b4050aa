package table

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *matrix.Matrix {
	m := matrix.New([]string{"A.txt", "B.txt"}, []string{"cat", "dog", "sat", "the"})
	for col, v := range []uint32{1, 0, 1, 1} {
		m.Set(0, col, v)
	}
	for col, v := range []uint32{0, 1, 1, 12} {
		m.Set(1, col, v)
	}
	return m
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample()))
	assert.Equal(t, "doc,cat,dog,sat,the\nA.txt,1,0,1,1\nB.txt,0,1,1,12\n", buf.String())
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, matrix.New(nil, nil)))
	assert.Equal(t, "doc\n", buf.String())
}

func TestWriteNoTerms(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, matrix.New([]string{"empty.txt"}, nil)))
	assert.Equal(t, "doc\nempty.txt\n", buf.String())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "matriz.csv")
	require.NoError(t, WriteFile(path, sample()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "doc,cat,dog,sat,the\nA.txt,1,0,1,1\nB.txt,0,1,1,12\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")

	// overwrite in place
	require.NoError(t, WriteFile(path, matrix.New(nil, nil)))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "doc\n", string(data))
}
