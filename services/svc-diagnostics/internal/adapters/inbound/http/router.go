package http

import (
	"fmt"
	"net/http"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/pkg/metrics"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/handlers"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/config"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	healthChecksPath = "/health-checks"

	// memstore capacity used when no shared rate limit store is configured.
	localRateLimitKeys = 65536
)

type RouterConfig struct {
	App            *usecases.WebApplication
	Logger         logger.Logger
	MetricsClient  metrics.Client
	TracerProvider otelTrace.TracerProvider
	Config         *config.ServiceConfig

	// IdempotencyCache and RateLimitStore are optional. Without a shared cache
	// idempotency is off and rate limits are kept per instance.
	IdempotencyCache ports.IdempotencyCache
	RateLimitStore   throttled.GCRAStoreCtx
}

func NewRouter(cfg RouterConfig) (http.Handler, error) {
	swagger, err := handlers.GetSwagger()
	if err != nil {
		return nil, err
	}

	requestValidator, err := middleware.RequestValidator(swagger)
	if err != nil {
		return nil, err
	}

	rateLimitStore := cfg.RateLimitStore
	if rateLimitStore == nil {
		if rateLimitStore, err = memstore.NewCtx(localRateLimitKeys); err != nil {
			return nil, fmt.Errorf("failed to create local rate limit store: %w", err)
		}

		cfg.Logger.Warn().Msg("rate limits are tracked per instance, no shared store configured")
	}

	rateLimiter, err := middleware.ThrottledRateLimiting(cfg.Config.ThrottledRateLimiting, rateLimitStore, cfg.Logger)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestTracking())
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(middleware.SecurityHeaders(cfg.Config.App.APIVersion))
	router.Use(middleware.CORS([]string{"*"}))

	if cfg.Config.Telemetry.Traces.Enabled {
		router.Use(middleware.Tracer(cfg.Config.App.ServiceName, cfg.TracerProvider))
		cfg.Logger.Info().Msg("distributed tracing enabled")
	}

	if cfg.Config.Telemetry.Metrics.Enabled {
		router.Use(middleware.NewMetricsMiddleware(cfg.MetricsClient).Middleware)
		cfg.Logger.Info().Msg("HTTP metrics collection enabled")
	}

	if cfg.Config.Logging.AccessLog.Enabled {
		router.Use(middleware.NewHealthCheckFilter(cfg.Config.Logging.AccessLog.LogHealthChecks).Middleware)
		router.Use(middleware.NewAccessLogger(cfg.Logger).Middleware)
	}

	authenticator := middleware.NewAuthenticator(cfg.Config.Auth, cfg.Logger)
	healthChecks := handlers.NewHealthChecksHandler(cfg.App, cfg.Config.RunsCache.MaxAge, cfg.Logger)
	watch := handlers.NewWatchHandler(cfg.App, cfg.Config.Watch.PollInterval, cfg.Config.Watch.WriteTimeout, cfg.Logger)

	router.Route(healthChecksPath, func(r chi.Router) {
		r.Use(authenticator.Middleware)

		// the websocket stream outlives any request timeout and must not be buffered
		r.Get("/watch", watch.Watch)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(cfg.Config.PublicHTTPServer.WriteTimeout))
			r.Use(middleware.Compression(cfg.Config.Compression, cfg.MetricsClient))
			r.Use(requestValidator)

			r.With(rateLimiter, middleware.Idempotency(cfg.IdempotencyCache, cfg.Config.Idempotency, cfg.Logger)).
				Post("/", healthChecks.CreateHealthCheck)
			r.With(middleware.CacheStatus, middleware.ConditionalGET()).
				Get("/", healthChecks.GetHealthChecks)
			r.Delete("/", healthChecks.DeleteHealthCheck)
		})
	})

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeRouterError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeRouterError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	if cfg.Config.Auth.Enabled {
		cfg.Logger.Info().Msg("authentication is enabled")
	}

	return router, nil
}
