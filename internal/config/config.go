// Package config provides centralized configuration management for the ETL
// loader and the reporting dashboard. It loads configuration from environment
// variables with sensible defaults and validates all settings on startup to
// fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	ETL      ETLConfig
	Report   ReportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 5000)
	Port int `env:"SERVER_PORT" default:"5000"`

	// ReadTimeout is the maximum duration for reading the request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing the response (default: 0 for streamed exports)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the relational store: sqlite or postgres (default: sqlite)
	Driver string `env:"DB_DRIVER" default:"sqlite"`

	// URL is the sqlite file path or the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" default:"ief_louga.db"`

	// MaxConns is the maximum number of open connections for the dashboard (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the number of idle connections to keep (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ETLConfig holds the loader's inputs and source-format conventions.
type ETLConfig struct {
	// SchemaPath is the schema definition applied on every run.
	// Empty means the schema embedded for the selected driver.
	SchemaPath string `env:"ETL_SCHEMA_PATH"`

	// EstablishmentsCSV is the establishments source (default: bd/etablissements.csv)
	EstablishmentsCSV string `env:"ETL_ESTABLISHMENTS_CSV" default:"bd/etablissements.csv"`

	// PersonnelCSV is the personnel source (default: bd/personnels.csv)
	PersonnelCSV string `env:"ETL_PERSONNEL_CSV" default:"bd/personnels.csv"`

	// Encoding is the text encoding of both sources: latin-1, windows-1252, utf-8 (default: latin-1)
	Encoding string `env:"ETL_SOURCE_ENCODING" default:"latin-1"`

	// MissingPlaceholder is the literal the exporting tool writes for "no value" (default: nan)
	MissingPlaceholder string `env:"ETL_MISSING_PLACEHOLDER" default:"nan"`

	// Department is stored on every commune row (default: LOUGA)
	Department string `env:"ETL_DEPARTMENT" default:"LOUGA"`

	// MetricsFile receives the run metrics in the Prometheus text format,
	// for the node_exporter textfile collector. Empty disables it.
	MetricsFile string `env:"ETL_METRICS_FILE"`
}

// ReportConfig holds reporting layer settings.
type ReportConfig struct {
	// PageSize is the number of rows per listing page (default: 50)
	PageSize int `env:"REPORT_PAGE_SIZE" default:"50"`

	// ExportFlushRows is how many CSV rows are written between flushes (default: 1000)
	ExportFlushRows int `env:"REPORT_EXPORT_FLUSH_ROWS" default:"1000"`

	// TopN bounds the "top" breakdowns on the dashboard (default: 10)
	TopN int `env:"REPORT_TOP_N" default:"10"`

	// MaxConcurrentExports bounds parallel CSV exports (default: 4)
	MaxConcurrentExports int `env:"REPORT_MAX_CONCURRENT_EXPORTS" default:"4"`

	// ExportWait is how long an export waits for a free slot (default: 10s)
	ExportWait time.Duration `env:"REPORT_EXPORT_WAIT" default:"10s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ExportLimit is requests per minute for export endpoints (default: 10)
	ExportLimit int `env:"RATE_LIMIT_EXPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
