package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Pareto/internal/config"
)

func NewRouter(frontiers *FrontiersHandler, analysis *AnalysisHandler, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	if cfg.Server.RateLimit > 0 {
		r.Use(RateLimitMiddleware(cfg.Server.RateLimit))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/frontiers", frontiers.List)
		r.Get("/frontiers/{tag}", frontiers.Get)

		r.Get("/curves/{ct}/{node}/{hour}/{td}", analysis.Curve)
		r.Get("/elasticity/{ct}/{node}/{hour}/{td}", analysis.Elasticity)
		r.Get("/prices/summary", analysis.PriceSummary)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.Server.AdminToken))
			r.Post("/admin/reload", analysis.Reload)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
