package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/iefreport/internal/store"
)

// RunInfo is one row of the ETL run history.
type RunInfo struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Status         string    `json:"status"`
	Communes       int       `json:"communes"`
	Establishments int       `json:"etablissements"`
	Personnel      int       `json:"personnel"`
	Unmatched      int       `json:"unmatched"`
	Error          string    `json:"error,omitempty"`
}

// Duration is the wall time of the run.
func (r RunInfo) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// LastRun returns the most recent ETL run, or nil when the store has no run
// history (for example a store built from a custom schema by hand).
func (s *Service) LastRun(ctx context.Context) (*RunInfo, error) {
	has, err := s.store.HasTable(ctx, store.RunsTable)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}

	var (
		r                 RunInfo
		started, finished any
		msg               sql.NullString
	)
	err = s.queryRow(ctx, `SELECT run_id, started_at, finished_at, status,
    communes, etablissements, personnel, unmatched, error
FROM etl_runs
ORDER BY id DESC
LIMIT 1`).Scan(&r.RunID, &started, &finished, &r.Status,
		&r.Communes, &r.Establishments, &r.Personnel, &r.Unmatched, &msg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", store.Translate(err))
	}

	if r.StartedAt, err = parseTimestamp(started); err != nil {
		return nil, fmt.Errorf("last run started_at: %w", err)
	}
	if r.FinishedAt, err = parseTimestamp(finished); err != nil {
		return nil, fmt.Errorf("last run finished_at: %w", err)
	}
	r.Error = msg.String
	return &r, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts what either driver hands back for a TIMESTAMP
// column: a time.Time, or its text form.
func parseTimestamp(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}

	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
