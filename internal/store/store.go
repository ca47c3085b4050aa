// Package store persists finished matrices to a SQL database: one row per
// run, one per document and one per non-zero cell.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/matrix"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/sqlite"
)

// Database is satisfied by *postgres.Client and *sqlite.DB.
type Database interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Ping(ctx context.Context) error
	SQL() *sql.DB
	Close() error
}

// Dialect is the SQL flavour of a Database.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS termmatrix_runs (
		run_id          TEXT PRIMARY KEY,
		encoding        TEXT NOT NULL,
		workers         INTEGER NOT NULL,
		documents       INTEGER NOT NULL,
		terms           INTEGER NOT NULL,
		elapsed_seconds DOUBLE PRECISION NOT NULL,
		created_at      TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS termmatrix_documents (
		run_id TEXT NOT NULL REFERENCES termmatrix_runs(run_id) ON DELETE CASCADE,
		doc_id INTEGER NOT NULL,
		label  TEXT NOT NULL,
		PRIMARY KEY (run_id, doc_id)
	)`,
	`CREATE TABLE IF NOT EXISTS termmatrix_cells (
		run_id TEXT NOT NULL REFERENCES termmatrix_runs(run_id) ON DELETE CASCADE,
		doc_id INTEGER NOT NULL,
		term   TEXT NOT NULL,
		count  INTEGER NOT NULL,
		PRIMARY KEY (run_id, doc_id, term)
	)`,
}

// Run describes one build.
type Run struct {
	ID             string
	Encoding       string
	Workers        int
	ElapsedSeconds float64
	CreatedAt      time.Time
}

// Store writes matrices to a Database.
type Store struct {
	db      Database
	dialect Dialect
	logger  *slog.Logger
}

// New wraps db.
func New(db Database, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.Default().With("component", "matrix-store"),
	}
}

// Open connects to the database selected by cfg.Sink.Driver. It returns nil
// when no sink is configured.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Sink.Driver {
	case config.SinkPostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return New(client, DialectPostgres), nil
	case config.SinkSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return New(db, DialectSQLite), nil
	default:
		return nil, nil
	}
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.SQL().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating matrix schema: %w", err)
		}
	}
	return nil
}

// Save replaces any previous copy of run with m in one transaction.
func (s *Store) Save(ctx context.Context, run Run, m *matrix.Matrix) error {
	nrows, ncols := m.Dims()
	cells := 0
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM termmatrix_cells WHERE run_id = ?"), run.ID); err != nil {
			return fmt.Errorf("clearing cells: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM termmatrix_documents WHERE run_id = ?"), run.ID); err != nil {
			return fmt.Errorf("clearing documents: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM termmatrix_runs WHERE run_id = ?"), run.ID); err != nil {
			return fmt.Errorf("clearing run: %w", err)
		}

		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO termmatrix_runs (run_id, encoding, workers, documents, terms, elapsed_seconds, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			run.ID, run.Encoding, run.Workers, nrows, ncols, run.ElapsedSeconds, run.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}

		docStmt, err := tx.PrepareContext(ctx, s.rebind(
			"INSERT INTO termmatrix_documents (run_id, doc_id, label) VALUES (?, ?, ?)"))
		if err != nil {
			return fmt.Errorf("preparing document insert: %w", err)
		}
		defer docStmt.Close()
		for doc, label := range m.Labels {
			if _, err := docStmt.ExecContext(ctx, run.ID, doc, label); err != nil {
				return fmt.Errorf("inserting document %d: %w", doc, err)
			}
		}

		cellStmt, err := tx.PrepareContext(ctx, s.rebind(
			"INSERT INTO termmatrix_cells (run_id, doc_id, term, count) VALUES (?, ?, ?, ?)"))
		if err != nil {
			return fmt.Errorf("preparing cell insert: %w", err)
		}
		defer cellStmt.Close()
		return m.NonZero(func(doc, col int, v uint32) error {
			if _, err := cellStmt.ExecContext(ctx, run.ID, doc, m.Terms[col], int64(v)); err != nil {
				return fmt.Errorf("inserting cell (%d, %s): %w", doc, m.Terms[col], err)
			}
			cells++
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	s.logger.Info("matrix saved",
		"run_id", run.ID,
		"documents", nrows,
		"terms", ncols,
		"cells", cells,
	)
	return nil
}

// Cell is one stored non-zero count.
type Cell struct {
	Doc   int
	Term  string
	Count int
}

// Cells returns the stored cells of a run ordered by document and term.
func (s *Store) Cells(ctx context.Context, runID string) ([]Cell, error) {
	rows, err := s.db.SQL().QueryContext(ctx, s.rebind(
		"SELECT doc_id, term, count FROM termmatrix_cells WHERE run_id = ? ORDER BY doc_id, term"), runID)
	if err != nil {
		return nil, fmt.Errorf("querying cells: %w", err)
	}
	defer rows.Close()

	var cells []Cell
	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.Doc, &c.Term, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning cell: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites '?' placeholders to the dialect's form.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}
