package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/iefreport/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	assert.NotNil(t, m.RowsRead)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.StageDuration)
}

func TestRecordExtract(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.RecordExtract("etablissements", 10, 2)
	m.RecordExtract("etablissements", 5, 1)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.RowsRead.WithLabelValues("etablissements")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsSkipped.WithLabelValues("etablissements")))
}

func TestRecordInsertAndUnmatched(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.RecordInsert("personnel", 7)
	m.RecordUnmatched(2)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.RowsInserted.WithLabelValues("personnel")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UnmatchedPeople))
}

func TestRecordRun(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.RecordRun(true)
	m.RecordRun(false)
	m.RecordRun(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("failure")))
}

func TestRecordHTTPRequest_StatusClass(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.RecordHTTPRequest("GET", "/etablissements/{id}", 200, 10*time.Millisecond)
	m.RecordHTTPRequest("GET", "/etablissements/{id}", 204, 10*time.Millisecond)
	m.RecordHTTPRequest("GET", "/etablissements/{id}", 302, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/etablissements/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/etablissements/{id}", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/etablissements/{id}", "3xx")))
}

func TestObserveStage(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.ObserveStage("load_communes", 20*time.Millisecond)

	expected := `
# HELP etl_stage_duration_seconds Duration of each pipeline stage in seconds
# TYPE etl_stage_duration_seconds histogram
etl_stage_duration_seconds_bucket{stage="load_communes",le="0.01"} 0
etl_stage_duration_seconds_bucket{stage="load_communes",le="0.05"} 1
etl_stage_duration_seconds_bucket{stage="load_communes",le="0.1"} 1
etl_stage_duration_seconds_bucket{stage="load_communes",le="0.5"} 1
etl_stage_duration_seconds_bucket{stage="load_communes",le="1"} 1
etl_stage_duration_seconds_bucket{stage="load_communes",le="5"} 1
etl_stage_duration_seconds_bucket{stage="load_communes",le="15"} 1
etl_stage_duration_seconds_bucket{stage="load_communes",le="60"} 1
etl_stage_duration_seconds_bucket{stage="load_communes",le="+Inf"} 1
etl_stage_duration_seconds_sum{stage="load_communes"} 0.02
etl_stage_duration_seconds_count{stage="load_communes"} 1
`
	err := testutil.CollectAndCompare(m.StageDuration, strings.NewReader(expected))
	assert.NoError(t, err)
}

func TestRecordRateLimitHitAndExport(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.RecordRateLimitHit("export")
	m.RecordExportRows("personnel", 1500)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitHits.WithLabelValues("export")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(m.ExportRows.WithLabelValues("personnel")))
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RecordInsert("communes", 48)
	m.RecordRun(true)

	path := filepath.Join(t.TempDir(), "etl.prom")
	require.NoError(t, metrics.WriteTextfile(path, reg))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `etl_rows_inserted_total{table="communes"} 48`)
	assert.Contains(t, string(b), `etl_runs_total{status="success"} 1`)
}

func TestWriteTextfile_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "etl.prom")
	err := metrics.WriteTextfile(path, prometheus.NewRegistry())
	assert.ErrorContains(t, err, path)
}
