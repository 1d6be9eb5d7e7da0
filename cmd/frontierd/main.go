package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/Pareto/internal/api"
	"github.com/MikeSquared-Agency/Pareto/internal/config"
	"github.com/MikeSquared-Agency/Pareto/internal/hermes"
	"github.com/MikeSquared-Agency/Pareto/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var st store.Store
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		st = db
		logger.Info("connected to database")
	default:
		fs, err := store.NewFileStore(cfg.Store.Dir)
		if err != nil {
			logger.Error("failed to open frontier dir", "error", err)
			os.Exit(1)
		}
		st = fs
	}
	defer st.Close()

	// Instance export (optional): analysis endpoints answer 503 until loaded.
	load := api.ExportLoader(cfg)
	inst, err := load()
	if err != nil {
		logger.Warn("no instance export loaded", "error", err)
	} else {
		logger.Info("instance export loaded", "curves", len(inst.Table.Keys()), "prices", len(inst.Prices))
	}

	// Without hermes nothing invalidates the list, so only the TTL bounds it.
	frontiers := api.NewFrontiersHandler(st, cfg.FrontierCacheTTL())
	analysis := api.NewAnalysisHandler(inst, load, cfg)

	// Hermes (optional): refresh the frontier list whenever a sweep persists one.
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, cfg.Hermes.Name+"-frontierd", logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, frontier list refreshes on restart only", "error", err)
		} else {
			defer hc.Close()
			if err := hc.Subscribe(hermes.SubjectFrontierPersistedAll, func(subject string, _ []byte) {
				logger.Info("frontier persisted", "subject", subject)
				frontiers.Invalidate()
			}); err != nil {
				logger.Warn("failed to subscribe", "subject", hermes.SubjectFrontierPersistedAll, "error", err)
			}
			if err := hc.Subscribe(hermes.SubjectSweepCompletedAll, func(subject string, data []byte) {
				var evt hermes.SweepCompletedEvent
				if err := json.Unmarshal(data, &evt); err != nil {
					logger.Warn("malformed sweep event", "subject", subject, "error", err)
					return
				}
				logger.Info("sweep completed", "sweep_id", evt.SweepID, "persisted", evt.Persisted, "abandoned", evt.Abandoned)
				frontiers.Invalidate()
			}); err != nil {
				logger.Warn("failed to subscribe", "subject", hermes.SubjectSweepCompletedAll, "error", err)
			}
			logger.Info("connected to hermes")
		}
	}

	// API server
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(frontiers, analysis, cfg, logger),
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
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
