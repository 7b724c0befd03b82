package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/iefreport/internal/config"
)

func TestRun_WritesMetricsFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:   config.DriverSQLite,
			URL:      filepath.Join(dir, "ief.db"),
			MaxConns: 1,
		},
		ETL: config.ETLConfig{
			EstablishmentsCSV:  filepath.Join(dir, "absent.csv"),
			PersonnelCSV:       filepath.Join(dir, "absent.csv"),
			Encoding:           "latin-1",
			MissingPlaceholder: "nan",
			Department:         "LOUGA",
			MetricsFile:        filepath.Join(dir, "etl.prom"),
		},
	}

	err := run(context.Background(), cfg, nil)
	require.Error(t, err, "sources are missing")

	b, err := os.ReadFile(cfg.ETL.MetricsFile)
	require.NoError(t, err, "metrics are written for failed runs")
	assert.Contains(t, string(b), `etl_runs_total{status="failure"} 1`)
	assert.Contains(t, string(b), `etl_stage_duration_seconds_count{stage="schema"} 1`)
}

func TestRun_NoMetricsFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:   config.DriverSQLite,
			URL:      filepath.Join(dir, "ief.db"),
			MaxConns: 1,
		},
		ETL: config.ETLConfig{
			EstablishmentsCSV: filepath.Join(dir, "absent.csv"),
			PersonnelCSV:      filepath.Join(dir, "absent.csv"),
			Encoding:          "latin-1",
		},
	}

	require.Error(t, run(context.Background(), cfg, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".prom", filepath.Ext(e.Name()))
	}
}
