package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		paths []string
		out   string
	}{
		{"files only", []string{"a.txt", "b.txt"}, []string{"a.txt", "b.txt"}, ""},
		{"trailing out", []string{"a.txt", "--out", "m.csv"}, []string{"a.txt"}, "m.csv"},
		{"out between files", []string{"a.txt", "-o", "m.csv", "b.txt"}, []string{"a.txt", "b.txt"}, "m.csv"},
		{"equals form", []string{"--out=m.csv", "a.txt"}, []string{"a.txt"}, "m.csv"},
		{"nothing", nil, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths, out, err := splitArgs(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.paths, paths)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestSplitArgsMissingPath(t *testing.T) {
	_, _, err := splitArgs([]string{"a.txt", "--out"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run(append([]string{"termmatrix", "--log-level", "error"}, args...))
	return stdout.String(), err
}

var timeLine = regexp.MustCompile(`^time_sec=[0-9.e+-]+\n$`)

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("the cat"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("the dog the"), 0o644))
	out := filepath.Join(dir, "out", "m.csv")

	for _, enc := range []string{"dense", "sparse"} {
		t.Run(enc, func(t *testing.T) {
			stdout, err := runApp(t, "run", "--workers", "2", "--encoding", enc, a, b, "--out", out)
			require.NoError(t, err)
			assert.Regexp(t, timeLine, stdout)

			got, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, "doc,cat,dog,the\na.txt,1,0,1\nb.txt,0,1,2\n", string(got))
		})
	}
}

func TestRunCommandEmptyInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "m.csv")
	stdout, err := runApp(t, "run", "--out", out)
	require.NoError(t, err)
	assert.Regexp(t, timeLine, stdout)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "doc\n", string(got))
}

func TestRunCommandInvalidInput(t *testing.T) {
	_, err := runApp(t, "run", "--workers", "0", "a.txt")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitInvalidInput, apperrors.ExitCode(err))

	_, err = runApp(t, "run", "--encoding", "csr", "a.txt")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitInvalidInput, apperrors.ExitCode(err))
}

func TestWorkerRequiresTransport(t *testing.T) {
	_, err := runApp(t, "worker", "--rank", "0", "--size", "1", "--transport", "local")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
