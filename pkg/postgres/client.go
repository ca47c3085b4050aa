// Package postgres connects the matrix sink to a PostgreSQL server through
// lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/config"
	_ "github.com/lib/pq"
)

// connectTimeout bounds the first ping, so a coordinator with an
// unreachable sink fails fast instead of after its matrix is built.
const connectTimeout = 5 * time.Second

// Client is a pool sized for a single coordinator writing one run at a time.
type Client struct {
	db   *sql.DB
	addr string
}

// New opens the pool and verifies the server answers.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres sink %s: %w", addr, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres sink %s unreachable: %w", addr, err)
	}
	return &Client{db: db, addr: addr}, nil
}

func (c *Client) Close() error { return c.db.Close() }

func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres sink %s: %w", c.addr, err)
	}
	return nil
}

func (c *Client) SQL() *sql.DB { return c.db }

// InTx runs fn in one transaction, so a run record is stored together with
// its documents and cells or not at all.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
