package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JonMunkholm/iefreport/internal/config"
	"github.com/JonMunkholm/iefreport/internal/store"
)

// ErrUnknownTable is returned for a table key that is not registered.
var ErrUnknownTable = errors.New("unknown table")

// ErrInvalidFilter is returned when a filter value cannot be applied.
var ErrInvalidFilter = errors.New("invalid filter")

// Service provides the reporting queries. It never writes to the store.
type Service struct {
	store   *store.Store
	cfg     config.ReportConfig
	exports *ExportLimiter
}

// NewService creates a new Service instance.
func NewService(st *store.Store, cfg config.ReportConfig) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if cfg.ExportFlushRows <= 0 {
		cfg.ExportFlushRows = 1000
	}
	return &Service{
		store:   st,
		cfg:     cfg,
		exports: NewExportLimiter(cfg.MaxConcurrentExports, cfg.ExportWait),
	}
}

// Exports returns the limiter guarding CSV exports.
func (s *Service) Exports() *ExportLimiter {
	return s.exports
}

// PageSize returns the default listing page size.
func (s *Service) PageSize() int {
	return s.cfg.PageSize
}

// Ping checks the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.DB.PingContext(ctx)
}

// ListTables returns information about all registered tables.
func (s *Service) ListTables() []TableInfo {
	defs := All()
	infos := make([]TableInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// ListTablesByGroup returns tables organized by group.
func (s *Service) ListTablesByGroup() map[string][]TableInfo {
	result := make(map[string][]TableInfo)
	for _, group := range Groups() {
		for _, def := range ByGroup(group) {
			result[group] = append(result[group], def.Info)
		}
	}
	return result
}

func (s *Service) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.store.DB.QueryContext(ctx, s.store.Rebind(q), args...)
}

func (s *Service) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.store.DB.QueryRowContext(ctx, s.store.Rebind(q), args...)
}

// count runs a single-value COUNT query.
func (s *Service) count(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	if err := s.queryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, store.Translate(err)
	}
	return n, nil
}

// labelCounts runs a "label, count" query. NULL labels become "".
func (s *Service) labelCounts(ctx context.Context, q string, args ...any) ([]LabelCount, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, store.Translate(err)
	}
	defer rows.Close()

	var out []LabelCount
	for rows.Next() {
		var label sql.NullString
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		out = append(out, LabelCount{Label: label.String, Count: n})
	}
	return out, rows.Err()
}

// stringList runs a single-column query. NULLs are dropped.
func (s *Service) stringList(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, store.Translate(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	return out, rows.Err()
}

// IDName is a select option.
type IDName struct {
	ID   int64  `json:"id"`
	Name string `json:"nom"`
}

func (s *Service) idNames(ctx context.Context, q string, args ...any) ([]IDName, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, store.Translate(err)
	}
	defer rows.Close()

	var out []IDName
	for rows.Next() {
		var o IDName
		if err := rows.Scan(&o.ID, &o.Name); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func lookup(key string) (TableDefinition, error) {
	def, ok := Get(key)
	if !ok {
		return TableDefinition{}, fmt.Errorf("%w: %s", ErrUnknownTable, key)
	}
	return def, nil
}
