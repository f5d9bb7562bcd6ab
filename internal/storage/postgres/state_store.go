// Package postgres keeps the notified set and the event snapshot in
// Postgres tables.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN             string
	NotifiedTable   string
	SnapshotTable   string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Pool is the subset of pgxpool.Pool used by StateStore.
type Pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// StateStore implements harvest.NotifiedStore and harvest.SnapshotStore.
type StateStore struct {
	pool          Pool
	notifiedTable string
	snapshotTable string
}

// NewStateStore connects to Postgres and ensures both tables exist.
func NewStateStore(ctx context.Context, cfg Config) (*StateStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewStateStoreWithPool(pool, cfg.NotifiedTable, cfg.SnapshotTable)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStateStoreWithPool constructs a store from an existing pool.
func NewStateStoreWithPool(pool Pool, notifiedTable, snapshotTable string) (*StateStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if notifiedTable == "" {
		notifiedTable = "notified_urls"
	}
	if snapshotTable == "" {
		snapshotTable = "event_snapshot"
	}
	for _, table := range []string{notifiedTable, snapshotTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &StateStore{pool: pool, notifiedTable: notifiedTable, snapshotTable: snapshotTable}, nil
}

// Close releases the underlying pool resources.
func (s *StateStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the state tables when missing.
func (s *StateStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	url         TEXT PRIMARY KEY,
	notified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS %s (
	position    INTEGER PRIMARY KEY,
	title       TEXT NOT NULL,
	url         TEXT NOT NULL,
	description TEXT NOT NULL,
	is_involved BOOLEAN NOT NULL
);`, s.notifiedTable, s.snapshotTable)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create state tables: %w", err)
	}
	return nil
}

// LoadNotified returns every URL recorded as notified.
func (s *StateStore) LoadNotified(ctx context.Context) (harvest.URLSet, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT url FROM %s", s.notifiedTable))
	if err != nil {
		return harvest.NewURLSet(), fmt.Errorf("query notified urls: %w", err)
	}
	defer rows.Close()

	set := harvest.NewURLSet()
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return harvest.NewURLSet(), fmt.Errorf("scan notified url: %w", err)
		}
		set.Add(url)
	}
	if err := rows.Err(); err != nil {
		return harvest.NewURLSet(), fmt.Errorf("iterate notified urls: %w", err)
	}
	return set, nil
}

// SaveNotified inserts any URL of set not yet recorded. Rows are never
// deleted, so the stored set only grows.
func (s *StateStore) SaveNotified(ctx context.Context, set harvest.URLSet) error {
	query := fmt.Sprintf("INSERT INTO %s (url) VALUES ($1) ON CONFLICT (url) DO NOTHING", s.notifiedTable)
	return s.inTx(ctx, "save notified urls", func(tx pgx.Tx) error {
		for _, url := range set.Sorted() {
			if _, err := tx.Exec(ctx, query, url); err != nil {
				return fmt.Errorf("insert notified url: %w", err)
			}
		}
		return nil
	})
}

// SaveSnapshot replaces the snapshot table contents with events.
func (s *StateStore) SaveSnapshot(ctx context.Context, events []harvest.Candidate) error {
	insert := fmt.Sprintf(
		"INSERT INTO %s (position, title, url, description, is_involved) VALUES ($1, $2, $3, $4, $5)",
		s.snapshotTable,
	)
	return s.inTx(ctx, "save snapshot", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.snapshotTable)); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
		for i, ev := range events {
			if _, err := tx.Exec(ctx, insert, i, ev.Title, ev.URL, ev.Description, ev.Involved); err != nil {
				return fmt.Errorf("insert snapshot row: %w", err)
			}
		}
		return nil
	})
}

func (s *StateStore) inTx(ctx context.Context, op string, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
