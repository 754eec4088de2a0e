// Package postgres persists snapshots in a Postgres table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/columbiacals/menud/internal/menu"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for snapshots.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Persister keeps the latest snapshot in a single Postgres row. Only the
// newest snapshot matters, so each save overwrites the previous one.
type Persister struct {
	pool  querier
	table string
}

// New creates a Postgres-backed persister using the provided config.
func New(ctx context.Context, cfg Config) (*Persister, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "menu_snapshots"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Persister{pool: pool, table: table}, nil
}

// NewWithPool constructs a persister from an existing pool (primarily for
// testing).
func NewWithPool(pool querier, table string) (*Persister, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "menu_snapshots"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Persister{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (p *Persister) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

// Save upserts the snapshot into the singleton row.
func (p *Persister) Save(ctx context.Context, snap menu.Snapshot) error {
	if p == nil || p.pool == nil {
		return fmt.Errorf("snapshot persister is not configured")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, generated_at, data)
VALUES (1, $1, $2)
ON CONFLICT (id) DO UPDATE
SET generated_at = EXCLUDED.generated_at,
    data = EXCLUDED.data`, p.table)
	if _, err := p.pool.Exec(ctx, query, snap.GeneratedAt, data); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Load reads the singleton row back. An empty table maps to
// menu.ErrNoSnapshot.
func (p *Persister) Load(ctx context.Context) (menu.Snapshot, error) {
	if p == nil || p.pool == nil {
		return menu.Snapshot{}, fmt.Errorf("snapshot persister is not configured")
	}
	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = 1`, p.table)
	var data []byte
	if err := p.pool.QueryRow(ctx, query).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return menu.Snapshot{}, menu.ErrNoSnapshot
		}
		return menu.Snapshot{}, fmt.Errorf("select snapshot: %w", err)
	}
	var snap menu.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return menu.Snapshot{}, fmt.Errorf("decode snapshot row: %w", err)
	}
	return snap, nil
}
