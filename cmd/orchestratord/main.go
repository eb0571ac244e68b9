// Command orchestratord is the orchestration middleware's service binary.
// It loads a YAML configuration file, wires the snapshot, session, ledger,
// and intent components, starts the background sweepers and the optional
// operator HTTP API, and shuts down gracefully on SIGTERM or SIGINT.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orchestra-core/ledger/internal/config"
	"github.com/orchestra-core/ledger/internal/orchestrator"
)

func main() {
	var configPath string
	var logLevel string
	flag.StringVar(&configPath, "config", "/etc/orchestration/orchestration.yaml", "Path to the orchestration config file")
	flag.StringVar(&logLevel, "log-level", "", "Override the config file's log level: debug | info | warn | error")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("orchestration middleware starting",
		slog.String("workspace_root", cfg.WorkspaceRoot),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("ledger_index_dsn", cfg.LedgerIndexDSN),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, err := orchestrator.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to construct orchestrator", slog.Any("error", err))
		os.Exit(1)
	}

	errCh := o.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("orchestrator error", slog.Any("error", err))
		}
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	o.Stop(shutdownCtx)

	logger.Info("orchestration middleware exited cleanly")
}

// newLogger constructs a *slog.Logger that writes JSON-structured log
// records to stderr at the requested minimum level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
