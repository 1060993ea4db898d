package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/pkg/metrics"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/handlers"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/config"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type AdminRouterConfig struct {
	App           *usecases.WebApplication
	Logger        logger.Logger
	MetricsClient metrics.Client
	Config        *config.ServiceConfig
}

// NewAdminRouter serves the probe and scrape endpoints on the internal port.
func NewAdminRouter(cfg AdminRouterConfig) http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(cfg.Logger))

	if cfg.Config.Logging.AccessLog.Enabled {
		router.Use(middleware.NewHealthCheckFilter(cfg.Config.Logging.AccessLog.LogHealthChecks).Middleware)
		router.Use(middleware.NewAccessLogger(cfg.Logger).Middleware)
	}

	adminHandler := handlers.NewAdminHandler(cfg.App, cfg.Logger)

	router.Get("/livez", adminHandler.Liveness)
	router.Get("/readyz", adminHandler.Readiness)

	if cfg.Config.Telemetry.Metrics.Enabled {
		router.Method(http.MethodGet, "/metrics", cfg.MetricsClient.Handler())
	}

	return router
}

func writeRouterError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":      code,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
