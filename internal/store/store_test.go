package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/matrix"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMatrix() *matrix.Matrix {
	m := matrix.New([]string{"a.txt", "b.txt"}, []string{"cat", "dog", "sat", "the"})
	m.Set(0, 0, 1)
	m.Set(0, 2, 1)
	m.Set(0, 3, 1)
	m.Set(1, 1, 1)
	m.Set(1, 2, 1)
	m.Set(1, 3, 1)
	return m
}

var wantCells = []Cell{
	{Doc: 0, Term: "cat", Count: 1},
	{Doc: 0, Term: "sat", Count: 1},
	{Doc: 0, Term: "the", Count: 1},
	{Doc: 1, Term: "dog", Count: 1},
	{Doc: 1, Term: "sat", Count: 1},
	{Doc: 1, Term: "the", Count: 1},
}

func exerciseStore(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "migrations must be repeatable")
	require.NoError(t, s.Ping(ctx))

	runID := "run-" + time.Now().Format("150405.000000000")
	run := Run{ID: runID, Encoding: "sparse", Workers: 2, ElapsedSeconds: 0.5, CreatedAt: time.Now()}
	require.NoError(t, s.Save(ctx, run, sampleMatrix()))

	cells, err := s.Cells(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, wantCells, cells)

	// saving the same run again replaces it
	m := matrix.New([]string{"a.txt"}, []string{"zebra"})
	m.Set(0, 0, 9)
	require.NoError(t, s.Save(ctx, run, m))
	cells, err = s.Cells(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, []Cell{{Doc: 0, Term: "zebra", Count: 9}}, cells)
}

func TestSQLiteStore(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "matrix.db"))
	require.NoError(t, err)
	s := New(db, DialectSQLite)
	defer s.Close()
	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	if os.Getenv("TEST_POSTGRES_HOST") == "" {
		t.Skip("skipping: TEST_POSTGRES_HOST not set")
	}
	cfg := config.Default().Postgres
	cfg.Host = os.Getenv("TEST_POSTGRES_HOST")
	client, err := postgres.New(context.Background(), cfg)
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	s := New(client, DialectPostgres)
	defer s.Close()
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	cfg := config.Default()
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, s)

	cfg.Sink.Driver = config.SinkSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "out", "tm.db")
	s, err = Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close()
	require.NoError(t, s.Migrate(context.Background()))
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	assert.Equal(t, "INSERT INTO t VALUES ($1, $2, $3)", pg.rebind("INSERT INTO t VALUES (?, ?, ?)"))
	lite := &Store{dialect: DialectSQLite}
	assert.Equal(t, "SELECT ? FROM t", lite.rebind("SELECT ? FROM t"))
}
