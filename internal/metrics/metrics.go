// Package metrics holds the Prometheus collectors for the ETL run and the
// reporting dashboard.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	// ETL metrics
	RowsRead        *prometheus.CounterVec   // Source rows read, by source
	RowsSkipped     *prometheus.CounterVec   // Source rows dropped by the extractors, by source
	RowsInserted    *prometheus.CounterVec   // Rows written, by table
	UnmatchedPeople prometheus.Counter       // Personnel rows naming an unknown establishment
	StageDuration   *prometheus.HistogramVec // Stage latency in seconds
	Runs            *prometheus.CounterVec   // Pipeline runs by status (success/failure)

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec   // Requests by method, route, status
	HTTPRequestDuration *prometheus.HistogramVec // Request latency in seconds
	RateLimitHits       *prometheus.CounterVec   // Rejected requests by limiter
	ExportRows          *prometheus.CounterVec   // CSV rows streamed, by export
}

// New registers every collector on reg. A nil reg means the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RowsRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_rows_read_total",
				Help: "Total number of source rows read by source",
			},
			[]string{"source"},
		),
		RowsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_rows_skipped_total",
				Help: "Total number of source rows skipped for missing required fields",
			},
			[]string{"source"},
		),
		RowsInserted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_rows_inserted_total",
				Help: "Total number of rows inserted by table",
			},
			[]string{"table"},
		),
		UnmatchedPeople: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "etl_personnel_unmatched_total",
				Help: "Total number of personnel rows naming an establishment that was not loaded",
			},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "etl_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"stage"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_runs_total",
				Help: "Total number of pipeline runs by status",
			},
			[]string{"status"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status code",
			},
			[]string{"method", "route", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_rate_limit_hits_total",
				Help: "Total number of requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),
		ExportRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_export_rows_total",
				Help: "Total number of CSV rows streamed by export",
			},
			[]string{"export"},
		),
	}
}

// RecordExtract records the row counters of one extractor.
func (m *Metrics) RecordExtract(source string, read, skipped int) {
	m.RowsRead.WithLabelValues(source).Add(float64(read))
	m.RowsSkipped.WithLabelValues(source).Add(float64(skipped))
}

// RecordInsert adds n inserted rows for table.
func (m *Metrics) RecordInsert(table string, n int) {
	m.RowsInserted.WithLabelValues(table).Add(float64(n))
}

// RecordUnmatched adds n unresolved personnel references.
func (m *Metrics) RecordUnmatched(n int) {
	m.UnmatchedPeople.Add(float64(n))
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(ok bool) {
	status := "success"
	if !ok {
		status = "failure"
	}
	m.Runs.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records one served request. route is the chi route
// pattern, never the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, statusClass(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordRateLimitHit counts a rejected request.
func (m *Metrics) RecordRateLimitHit(limiter string) {
	m.RateLimitHits.WithLabelValues(limiter).Inc()
}

// RecordExportRows adds n streamed rows for export.
func (m *Metrics) RecordExportRows(export string, n int) {
	m.ExportRows.WithLabelValues(export).Add(float64(n))
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format. The file is replaced atomically, so a textfile collector never
// reads a partial run.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// statusClass keeps common codes exact and groups the rest by range.
func statusClass(code int) string {
	switch code {
	case 200, 400, 404, 429, 500, 503:
		return strconv.Itoa(code)
	}
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	}
	return "unknown"
}
