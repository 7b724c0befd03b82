package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/iefreport/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// dialect hides what differs between the supported databases.
type dialect interface {
	name() string
	open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error)
	// reset destroys any previous store at cfg's location and returns an
	// empty one.
	reset(ctx context.Context, cfg config.DatabaseConfig) (*Store, error)
	numberedParams() bool
	runsTableDDL() string
	tableExistsSQL() string
}

var dialects = map[string]func() dialect{
	config.DriverSQLite:   func() dialect { return sqliteDialect{} },
	config.DriverPostgres: func() dialect { return postgresDialect{} },
}

func lookupDialect(driver string) (dialect, error) {
	factory, ok := dialects[strings.ToLower(driver)]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return factory(), nil
}

// ============================================================================
// SQLite
// ============================================================================

type sqliteDialect struct{}

func (sqliteDialect) name() string         { return config.DriverSQLite }
func (sqliteDialect) numberedParams() bool { return false }

func (d sqliteDialect) open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("sqlite", sqliteDSN(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.URL, err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	return &Store{DB: db, dialect: d}, nil
}

func (d sqliteDialect) reset(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	path := cfg.URL
	if isMemoryPath(path) {
		return d.open(ctx, cfg)
	}

	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove %s: %w", p, err)
		}
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return d.open(ctx, cfg)
}

func (sqliteDialect) runsTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS etl_runs (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id         TEXT NOT NULL UNIQUE,
    started_at     TIMESTAMP NOT NULL,
    finished_at    TIMESTAMP NOT NULL,
    status         TEXT NOT NULL,
    communes       INTEGER NOT NULL DEFAULT 0,
    etablissements INTEGER NOT NULL DEFAULT 0,
    personnel      INTEGER NOT NULL DEFAULT 0,
    unmatched      INTEGER NOT NULL DEFAULT 0,
    error          TEXT
)`
}

func (sqliteDialect) tableExistsSQL() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

// sqliteDSN turns a file path into a modernc DSN with foreign keys enforced.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

// ============================================================================
// PostgreSQL
// ============================================================================

type postgresDialect struct{}

func (postgresDialect) name() string         { return config.DriverPostgres }
func (postgresDialect) numberedParams() bool { return true }

func (d postgresDialect) open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Store{
		DB:      stdlib.OpenDBFromPool(pool),
		dialect: d,
		closers: []func(){pool.Close},
	}, nil
}

// postgresResetSQL recreates the current schema, so objects a custom schema
// file added (views, types, extra tables) go with the known tables.
const postgresResetSQL = `DO $$
DECLARE
    target text := current_schema();
BEGIN
    IF target IS NULL THEN
        RAISE EXCEPTION 'no current schema on the search_path';
    END IF;
    EXECUTE format('DROP SCHEMA %I CASCADE', target);
    EXECUTE format('CREATE SCHEMA %I', target);
END
$$`

func (d postgresDialect) reset(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	s, err := d.open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if _, err := s.DB.ExecContext(ctx, postgresResetSQL); err != nil {
		s.Close()
		return nil, fmt.Errorf("recreate schema: %w", Translate(err))
	}
	return s, nil
}

func (postgresDialect) runsTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS etl_runs (
    id             SERIAL PRIMARY KEY,
    run_id         UUID NOT NULL UNIQUE,
    started_at     TIMESTAMPTZ NOT NULL,
    finished_at    TIMESTAMPTZ NOT NULL,
    status         VARCHAR(20) NOT NULL,
    communes       INTEGER NOT NULL DEFAULT 0,
    etablissements INTEGER NOT NULL DEFAULT 0,
    personnel      INTEGER NOT NULL DEFAULT 0,
    unmatched      INTEGER NOT NULL DEFAULT 0,
    error          TEXT
)`
}

func (postgresDialect) tableExistsSQL() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
}
