package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createEntriesTable = `CREATE TABLE IF NOT EXISTS kv_entries (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	shared     BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// pgConn is the subset of pgxpool.Pool used by PostgresKV.
type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresKV is the shared backend: every client sees the same documents.
type PostgresKV struct {
	conn pgConn
}

// OpenPostgres connects to connStr and ensures the table exists.
func OpenPostgres(ctx context.Context, connStr string) (*PostgresKV, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, nil, fmt.Errorf("open shared store: %w", err)
	}
	kv := NewPostgresKV(pool)
	if err := kv.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return kv, pool, nil
}

func NewPostgresKV(conn pgConn) *PostgresKV {
	return &PostgresKV{conn: conn}
}

func (s *PostgresKV) Migrate(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, createEntriesTable); err != nil {
		return fmt.Errorf("migrate shared store: %w", err)
	}
	return nil
}

func (s *PostgresKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRow(ctx, "SELECT value FROM kv_entries WHERE name = $1", key).Scan(&value)
	switch {
	case err == nil:
		return value, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("get entry: %w", err)
	}
}

func (s *PostgresKV) Set(ctx context.Context, key, value string) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO kv_entries (name, value, shared, updated_at) VALUES ($1, $2, TRUE, now())
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set entry: %w", err)
	}
	return nil
}

func (s *PostgresKV) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}
