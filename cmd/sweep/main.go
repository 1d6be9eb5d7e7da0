package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/Pareto/internal/api"
	"github.com/MikeSquared-Agency/Pareto/internal/config"
	"github.com/MikeSquared-Agency/Pareto/internal/hermes"
	"github.com/MikeSquared-Agency/Pareto/internal/metrics"
	"github.com/MikeSquared-Agency/Pareto/internal/oracle"
	"github.com/MikeSquared-Agency/Pareto/internal/scenario"
	"github.com/MikeSquared-Agency/Pareto/internal/store"
	"github.com/MikeSquared-Agency/Pareto/internal/sweep"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run wires the sweep and returns the process exit code. Deferred cleanup
// (store pool, hermes connection) runs before main exits.
func run(args []string) int {
	flags := flag.NewFlagSet("sweep", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to config file")
	only := flags.String("scenarios", "", "comma-separated scenario tags to run (default: all configured)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	scenarios, err := selectScenarios(cfg.Sweep.Scenarios, *only)
	if err != nil {
		logger.Error("invalid scenario selection", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var st store.Store
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return 1
		}
		if err := db.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			return 1
		}
		st = db
		logger.Info("connected to database")
	default:
		fs, err := store.NewFileStore(cfg.Store.Dir)
		if err != nil {
			logger.Error("failed to open frontier dir", "error", err)
			return 1
		}
		st = fs
		logger.Info("writing frontiers to disk", "dir", cfg.Store.Dir)
	}
	defer st.Close()

	// Oracle
	var exec oracle.Executor
	switch cfg.Oracle.Driver {
	case config.OracleHTTP:
		exec = oracle.NewHTTPExecutor(cfg.Oracle.URL, cfg.Oracle.Token, cfg.OracleTimeout())
		logger.Info("using remote oracle", "url", cfg.Oracle.URL)
	default:
		pe, err := oracle.NewProcessExecutor(oracle.ProcessConfig{
			Command:   cfg.Oracle.Command,
			Args:      cfg.Oracle.Args,
			Template:  cfg.Oracle.Template,
			ParamFile: cfg.Oracle.ParamFile,
			Env:       cfg.Oracle.Env,
		}, logger)
		if err != nil {
			logger.Error("failed to set up oracle", "error", err)
			return 1
		}
		exec = pe
		logger.Info("using local oracle", "command", cfg.Oracle.Command, "template", cfg.Oracle.Template)
	}

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, cfg.Hermes.Name+"-sweep", logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Metrics server
	m := metrics.New(prometheus.DefaultRegisterer)
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}
	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Interrupt cancels the sweep; the run in flight is killed.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("interrupted, cancelling sweep")
		cancel()
	}()

	orch := sweep.New(exec, st, hermesClient, m, cfg, logger)
	report, runErr := orch.Run(ctx, scenarios)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	for _, a := range report.Abandoned {
		logger.Warn("scenario produced no frontier", "tag", a.Tag, "reason", a.Reason)
	}
	if runErr != nil {
		logger.Error("sweep failed", "error", runErr, "persisted", report.Persisted())
		return 1
	}
	logger.Info("sweep finished",
		"persisted", report.Persisted(),
		"abandoned", len(report.Abandoned),
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	return 0
}

func selectScenarios(all []scenario.Scenario, only string) ([]scenario.Scenario, error) {
	if only == "" {
		return all, nil
	}
	byTag := make(map[string]scenario.Scenario, len(all))
	for _, sc := range all {
		byTag[sc.Tag] = sc
	}
	var out []scenario.Scenario
	for _, tag := range strings.Split(only, ",") {
		sc, ok := byTag[strings.TrimSpace(tag)]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", tag)
		}
		out = append(out, sc)
	}
	return out, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
