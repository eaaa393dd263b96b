// Package postgres persists login states, refresh token records and profiles
// in PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationLockKey serialises Migrate across replicas starting together.
const migrationLockKey = 7_320_114

type Options struct {
	MaxConns    int32
	MinConns    int32
	PingTimeout time.Duration
}

// Store owns the pool shared by the repositories.
type Store struct {
	pool *pgxpool.Pool
}

// Open builds a pool for databaseURL, checks connectivity and applies the
// embedded migrations.
func Open(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[postgres Open] parse config: %w", err)
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		pcfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("[postgres Open] new pool: %w", err)
	}

	s := &Store{pool: pool}
	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if err := s.ping(ctx, timeout); err != nil {
		pool.Close()
		return nil, fmt.Errorf("[postgres Open] ping: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing pool. The caller owns the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping checks a connection can be acquired.
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx, 3*time.Second)
}

func (s *Store) ping(parent context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

func (s *Store) LoginStates() *LoginStateRepo {
	return &LoginStateRepo{pool: s.pool}
}

func (s *Store) RefreshTokens() *RefreshRepo {
	return &RefreshRepo{pool: s.pool}
}

func (s *Store) Profiles() *ProfileRepo {
	return &ProfileRepo{pool: s.pool}
}

// Migrate applies every embedded migration not yet recorded in
// schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("[postgres Migrate] read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL
)`); err != nil {
		return fmt.Errorf("[postgres Migrate] ensure migration table: %w", err)
	}

	for _, name := range names {
		content, err := fs.ReadFile(migrationFiles, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("[postgres Migrate] read %s: %w", name, err)
		}
		if err := s.applyMigration(ctx, name, upSection(string(content))); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, name, up string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("[postgres Migrate] begin %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("[postgres Migrate] lock: %w", err)
	}

	var applied bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name,
	).Scan(&applied); err != nil {
		return fmt.Errorf("[postgres Migrate] check %s: %w", name, err)
	}
	if applied {
		return nil
	}

	if strings.TrimSpace(up) != "" {
		if _, err := tx.Exec(ctx, up); err != nil {
			return fmt.Errorf("[postgres Migrate] exec %s: %w", name, err)
		}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (name, applied_at) VALUES ($1, now())`, name,
	); err != nil {
		return fmt.Errorf("[postgres Migrate] record %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("[postgres Migrate] commit %s: %w", name, err)
	}
	return nil
}

func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	i := strings.Index(content, up)
	if i == -1 {
		return content
	}
	content = content[i+len(up):]
	if j := strings.Index(content, down); j != -1 {
		content = content[:j]
	}
	return content
}
