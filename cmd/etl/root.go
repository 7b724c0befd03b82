package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/iefreport/internal/config"
	"github.com/JonMunkholm/iefreport/internal/etl"
	"github.com/JonMunkholm/iefreport/internal/logging"
	"github.com/JonMunkholm/iefreport/internal/metrics"
	"github.com/JonMunkholm/iefreport/internal/store"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	flagDriver         string
	flagDB             string
	flagSchema         string
	flagEstablishments string
	flagPersonnel      string
	flagEncoding       string
	flagPlaceholder    string
	flagMetricsFile    string
	flagLogLevel       string
	flagQuiet          bool
)

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "Reload the IEF reporting store from the establishment and personnel exports",
	Long: `etl wipes the reporting store, applies the schema and loads the two
';'-separated exports in dependency order: communes, establishments, personnel.

Settings come from the environment (or a .env file); flags override them.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var out io.Writer = cmd.OutOrStdout()
		if flagQuiet {
			out = nil
		}

		return run(ctx, cfg, out)
	},
}

// run reloads the store and, when configured, leaves the run metrics in
// cfg.ETL.MetricsFile. The file is written for failed runs too.
func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	reg := prometheus.NewRegistry()
	_, err := etl.NewPipeline(cfg.Database, cfg.ETL, metrics.New(reg), out).Run(ctx)

	if path := cfg.ETL.MetricsFile; path != "" {
		if werr := metrics.WriteTextfile(path, reg); werr != nil {
			slog.Error("etl metrics not written", "path", path, "error", werr)
		}
	}
	return err
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the figures of the current store without reloading it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		s, err := store.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer s.Close()

		sum, err := etl.Summarize(cmd.Context(), s.DB)
		if err != nil {
			return err
		}
		etl.NewConsole(cmd.OutOrStdout()).Summary(sum)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("etl failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&flagDriver, "driver", "", "store driver: sqlite or postgres (env DB_DRIVER)")
	f.StringVar(&flagDB, "db", "", "sqlite file or postgres URL (env DATABASE_URL)")
	f.StringVar(&flagSchema, "schema", "", "schema file applied on reload (env ETL_SCHEMA_PATH)")
	f.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")

	rootCmd.Flags().StringVar(&flagEstablishments, "establishments", "", "establishments export (env ETL_ESTABLISHMENTS_CSV)")
	rootCmd.Flags().StringVar(&flagPersonnel, "personnel", "", "personnel export (env ETL_PERSONNEL_CSV)")
	rootCmd.Flags().StringVar(&flagEncoding, "encoding", "", "source encoding: latin-1, windows-1252, utf-8 (env ETL_SOURCE_ENCODING)")
	rootCmd.Flags().StringVar(&flagPlaceholder, "placeholder", "", "literal meaning \"no value\" in the exports (env ETL_MISSING_PLACEHOLDER)")
	rootCmd.Flags().StringVar(&flagMetricsFile, "metrics-file", "", "write run metrics for the node_exporter textfile collector (env ETL_METRICS_FILE)")
	rootCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress the console report")

	rootCmd.AddCommand(summaryCmd)
}

// loadConfig reads .env and the environment, applies flag overrides and
// validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	override := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	override("driver", &cfg.Database.Driver, flagDriver)
	override("db", &cfg.Database.URL, flagDB)
	override("schema", &cfg.ETL.SchemaPath, flagSchema)
	override("log-level", &cfg.Logging.Level, flagLogLevel)
	override("establishments", &cfg.ETL.EstablishmentsCSV, flagEstablishments)
	override("personnel", &cfg.ETL.PersonnelCSV, flagPersonnel)
	override("encoding", &cfg.ETL.Encoding, flagEncoding)
	override("placeholder", &cfg.ETL.MissingPlaceholder, flagPlaceholder)
	override("metrics-file", &cfg.ETL.MetricsFile, flagMetricsFile)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())
	return cfg, nil
}
