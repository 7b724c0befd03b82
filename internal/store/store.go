// Package store owns the relational store shared by the ETL loader and the
// reporting dashboard.
//
// Two dialects are supported: SQLite (a single file, the default) and
// PostgreSQL. Both are reached through database/sql so that the loader and
// the reporting queries are written once with '?' placeholders and rebound
// per dialect.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/JonMunkholm/iefreport/internal/config"
)

// DBTX is the query surface shared by *sql.DB, *sql.Tx and *sql.Conn.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is an open connection pool plus the dialect it speaks.
type Store struct {
	DB      *sql.DB
	dialect dialect
	closers []func()
}

// Tables created by the default schema, in dependency order.
var Tables = []string{"communes", "etablissements", "personnel"}

// RunsTable records one row per ETL run.
const RunsTable = "etl_runs"

// Open connects to an existing store read/write using the pool settings in cfg.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	s, err := d.open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := s.DB.PingContext(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ping %s store: %w", d.name(), err)
	}

	return s, nil
}

// Initialize destroys whatever store lives at cfg's location, creates a fresh
// one and applies schema in a single transaction. A nil schema means the
// embedded default for the driver.
//
// The returned store holds exactly one connection: the ETL is the only writer
// for the duration of a run.
func Initialize(ctx context.Context, cfg config.DatabaseConfig, schema []byte) (*Store, error) {
	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	if schema == nil {
		schema, err = DefaultSchema(cfg.Driver)
		if err != nil {
			return nil, err
		}
	}

	stmts := SplitStatements(string(schema))
	if len(stmts) == 0 {
		return nil, fmt.Errorf("schema contains no statements")
	}

	single := cfg
	single.MaxConns = 1
	single.MinConns = 1

	s, err := d.reset(ctx, single)
	if err != nil {
		return nil, fmt.Errorf("reset %s store: %w", d.name(), err)
	}
	s.DB.SetMaxOpenConns(1)

	if err := s.applySchema(ctx, stmts); err != nil {
		s.Close()
		return nil, err
	}

	slog.Debug("schema applied", "driver", d.name(), "statements", len(stmts))
	return s, nil
}

func (s *Store) applySchema(ctx context.Context, stmts []string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for i, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i+1, Translate(err))
			}
		}
		return nil
	})
}

// EnsureRunsTable creates the run history table when the applied schema did
// not declare it.
func (s *Store) EnsureRunsTable(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, s.dialect.runsTableDDL())
	if err != nil {
		return fmt.Errorf("create %s: %w", RunsTable, err)
	}
	return nil
}

// HasTable reports whether name exists in the store.
func (s *Store) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, s.Rebind(s.dialect.tableExistsSQL()), name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up table %s: %w", name, err)
	}
	return n > 0, nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", Translate(err))
	}
	return nil
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.dialect.name()
}

// Rebind rewrites '?' placeholders into the dialect's bind syntax. Question
// marks inside single-quoted literals are left alone.
func (s *Store) Rebind(query string) string {
	if !s.dialect.numberedParams() {
		return query
	}
	return rebindNumbered(query)
}

func rebindNumbered(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Close releases the pool.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	err := s.DB.Close()
	for _, c := range s.closers {
		c()
	}
	return err
}
