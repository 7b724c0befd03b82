package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/iefreport/internal/config"
	"github.com/JonMunkholm/iefreport/internal/core"
	_ "github.com/JonMunkholm/iefreport/internal/core/tables" // Register all tables
	"github.com/JonMunkholm/iefreport/internal/logging"
	"github.com/JonMunkholm/iefreport/internal/metrics"
	"github.com/JonMunkholm/iefreport/internal/store"
	"github.com/JonMunkholm/iefreport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"db_max_conns", cfg.Database.MaxConns,
		"max_concurrent_exports", cfg.Report.MaxConcurrentExports,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Connect to the store filled by the etl command
	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	for _, table := range store.Tables {
		ok, err := st.HasTable(ctx, table)
		if err != nil || !ok {
			slog.Warn("store table missing, run the etl command first", "table", table, "error", err)
		}
	}
	slog.Info("connected to store", "driver", st.Driver())

	service := core.NewService(st, cfg.Report)

	// Log registered tables
	slog.Info("tables registered",
		"count", core.TableCount(),
		"groups", len(core.Groups()),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := web.NewServer(service, web.Options{
		Config:   cfg,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := service.Exports().Active(); active > 0 {
			slog.Info("waiting for exports to complete", "active", active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
