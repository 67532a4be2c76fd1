package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const createEntriesTable = `
CREATE TABLE IF NOT EXISTS receiver_entries (
	id   BIGSERIAL PRIMARY KEY,
	ts   TIMESTAMPTZ NOT NULL,
	data JSONB NOT NULL
)`

// PostgresSink inserts each entry as a row in receiver_entries.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens dsn with the pgx driver and creates the entries
// table if it does not exist.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createEntriesTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create receiver_entries: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) Append(ctx context.Context, e Entry) error {
	ts, err := ParseTimestamp(e.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", e.Timestamp, err)
	}
	if !json.Valid(e.Data) {
		return fmt.Errorf("encode data: %w", ErrNotObject)
	}
	const q = `INSERT INTO receiver_entries (ts, data) VALUES ($1, $2)`
	if _, err := s.db.ExecContext(ctx, q, ts, string(e.Data)); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *PostgresSink) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM receiver_entries`).Scan(&n)
	return n, err
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
