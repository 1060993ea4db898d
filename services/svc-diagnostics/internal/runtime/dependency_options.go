package runtime

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/architeacher/diagnostics/pkg/circuitbreaker"
	"github.com/architeacher/diagnostics/pkg/decorator"
	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/pkg/metrics/noop"
	metricsotel "github.com/architeacher/diagnostics/pkg/metrics/otel"
	inboundhttp "github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/repos"
	adapterServices "github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/services"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/config"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/infrastructure"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/probes"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/services"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases"
	"github.com/hashicorp/vault/api"
)

// coreOptions build everything a run needs. Serving adds the HTTP servers on top.
func coreOptions() []DependencyOption {
	return []DependencyOption{
		WithConfig(),
		WithLogger(),
		WithSecretsRepository(),
		WithConfigLoader(),
		WithValidatedConfig(),
		WithTracing(),
		WithMetrics(),
		WithPostgres(),
		WithRunStore(),
		WithMonitoredStore(),
		WithCache(),
		WithOrchestration(),
		WithHealthChecker(),
		WithApplication(),
	}
}

func serveOptions() []DependencyOption {
	return append(coreOptions(), WithHTTPServers())
}

func WithConfig() DependencyOption {
	return func(d *dependencies) error {
		cfg, err := config.Init()
		if err != nil {
			return fmt.Errorf("initializing configuration: %w", err)
		}

		d.config = cfg

		return nil
	}
}

func WithLogger() DependencyOption {
	return func(d *dependencies) error {
		if d.logOutput != nil {
			d.infra.logger = logger.NewWithWriter(d.config.Logging.Level, d.config.Logging.Format, d.logOutput)

			return nil
		}

		d.infra.logger = logger.New(d.config.Logging.Level, d.config.Logging.Format)

		return nil
	}
}

func WithSecretsRepository() DependencyOption {
	return func(d *dependencies) error {
		storage := d.config.SecretsStorage
		if !storage.Enabled {
			return nil
		}

		vaultConfig := api.DefaultConfig()
		vaultConfig.Address = storage.Address
		vaultConfig.Timeout = storage.Timeout
		vaultConfig.MaxRetries = int(storage.MaxRetries)

		if storage.TLSSkipVerify {
			vaultConfig.HttpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}

		client, err := api.NewClient(vaultConfig)
		if err != nil {
			return fmt.Errorf("creating Vault client: %w", err)
		}

		if storage.Namespace != "" {
			client.SetNamespace(storage.Namespace)
		}

		d.repos.secretsRepo = repos.NewVaultRepository(client)

		return nil
	}
}

func WithConfigLoader() DependencyOption {
	return func(d *dependencies) error {
		if d.repos.secretsRepo == nil {
			return nil
		}

		version, err := config.NewLoader(d.config, d.repos.secretsRepo, 0).Load(d.baseCtx)
		if err != nil {
			return fmt.Errorf("loading secrets from Vault: %w", err)
		}

		d.configLoader = config.NewLoader(d.config, d.repos.secretsRepo, version)
		d.infra.logger.Info().Uint("version", version).Msg("secrets loaded from Vault")

		return nil
	}
}

// WithValidatedConfig runs after the secrets overlay, which may supply the JWT secret.
func WithValidatedConfig() DependencyOption {
	return func(d *dependencies) error {
		if err := d.config.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		return nil
	}
}

func WithTracing() DependencyOption {
	return func(d *dependencies) error {
		telemetry := d.config.Telemetry
		if !telemetry.Enabled || !telemetry.Traces.Enabled {
			d.infra.tracerProvider = infrastructure.NewNoopTracerProvider()

			return nil
		}

		tp, shutdown, err := infrastructure.NewTracerProvider(d.baseCtx, d.config.App, telemetry)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}

		d.infra.tracerProvider = tp
		d.onCleanup("tracer", shutdown)

		return nil
	}
}

func WithMetrics() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Telemetry.Metrics.Enabled {
			d.infra.metricsClient = noop.NewMetricsClient()

			return nil
		}

		client, err := metricsotel.NewClient(metricsotel.Config{
			ServiceName:    d.config.App.ServiceName,
			ServiceVersion: config.ServiceVersion,
		})
		if err != nil {
			return fmt.Errorf("initializing metrics: %w", err)
		}

		d.infra.metricsClient = client
		d.onCleanup("metrics", client.Shutdown)

		return nil
	}
}

// WithPostgres opens the pool shared by the run store and the monitored store.
func WithPostgres() DependencyOption {
	return func(d *dependencies) error {
		pool, err := infrastructure.NewPostgresPool(d.baseCtx, d.config.Database, d.config.Backoff, d.infra.logger)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}

		d.infra.pgPool = pool
		d.onCleanup("postgres", func(context.Context) error {
			pool.Close()

			return nil
		})

		return nil
	}
}

func WithRunStore() DependencyOption {
	return func(d *dependencies) error {
		switch d.config.Storage.Driver {
		case config.StorageDriverMemory:
			d.repos.runRepo = repos.NewRunsMemoryRepository()
			d.infra.logger.Warn().Msg("run records are kept in memory and lost on restart")
		default:
			d.repos.runRepo = repos.NewRunsRepository(d.infra.pgPool, repos.NewPgxScanner(), d.infra.logger.Named("runs_repository"))
		}

		return nil
	}
}

func WithMonitoredStore() DependencyOption {
	return func(d *dependencies) error {
		store := repos.NewMonitoredStore(d.infra.pgPool, d.infra.logger.Named("monitored_store"))
		cb := d.config.CircuitBreaker

		d.repos.monitoredStore = adapterServices.NewGuardedStore(store, circuitbreaker.Config{
			Name:             "monitored_store",
			Enabled:          cb.Enabled,
			MaxRequests:      cb.MaxRequests,
			Interval:         cb.Interval,
			Timeout:          cb.Timeout,
			FailureThreshold: cb.FailureThreshold,
		}, d.infra.logger)

		return nil
	}
}

// WithCache connects KeyDB. An unreachable cache leaves the service running
// degraded: readiness reports it and the cache-backed features fail open.
func WithCache() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Cache.Enabled {
			return nil
		}

		client := infrastructure.NewKeyDBClient(d.config.Cache, d.infra.logger)

		_, err := infrastructure.Retry(d.baseCtx, d.config.Backoff, func() (struct{}, error) {
			return struct{}{}, client.Ping(d.baseCtx)
		})
		if err != nil {
			d.infra.logger.Warn().Err(err).Str("address", d.config.Cache.Address).Msg("cache unreachable, starting degraded")
		}

		d.infra.cacheClient = client
		d.repos.runsCache = repos.NewRunsCacheRepository(client, d.infra.logger.Named("runs_cache"))
		d.repos.idempotencyRepo = repos.NewIdempotencyRepository(client)
		d.repos.rateLimitStore = repos.NewRateLimitStore(client)
		d.onCleanup("cache", func(context.Context) error {
			return client.Close()
		})

		return nil
	}
}

func WithOrchestration() DependencyOption {
	return func(d *dependencies) error {
		registry := probes.NewDefaultRegistry(d.repos.monitoredStore, probeConfig(d.config.Probes))

		d.services.orchestrator = services.NewOrchestrator(
			d.repos.runRepo,
			registry,
			services.OrchestratorConfig{
				PacingDelay:  d.config.Orchestrator.PacingDelay,
				ProbeTimeout: d.config.Orchestrator.ProbeTimeout,
			},
			d.infra.logger.Named("orchestrator"),
			d.infra.metricsClient,
			d.infra.tracerProvider,
		)

		d.services.runService = services.NewRunService(
			d.baseCtx,
			d.repos.runRepo,
			d.services.orchestrator,
			d.infra.logger.Named("run_service"),
		)

		return nil
	}
}

func WithHealthChecker() DependencyOption {
	return func(d *dependencies) error {
		var cache adapterServices.CacheProbe
		if d.repos.runsCache != nil {
			cache = d.repos.runsCache
		}

		d.services.healthChecker = adapterServices.NewHealthChecker(d.repos.runRepo, d.repos.monitoredStore, cache)

		return nil
	}
}

func WithApplication() DependencyOption {
	return func(d *dependencies) error {
		caching := usecases.RunCaching{}
		if d.repos.runsCache != nil && d.config.RunsCache.Enabled {
			caching = usecases.RunCaching{
				Cache:  d.repos.runsCache,
				Reader: repos.NewGetRunCacheAdapter(d.repos.runsCache),
				Config: decorator.CacheConfig{Enabled: true, TTL: d.config.RunsCache.TTL},
			}
		}

		d.apps.webApp = usecases.NewWebApplication(
			d.services.runService,
			d.services.healthChecker,
			caching,
			d.infra.logger,
			d.infra.metricsClient,
			d.infra.tracerProvider,
		)

		return nil
	}
}

// WithHTTPServers builds the public API server and, when enabled, the admin server.
// Both derive request contexts from baseCtx so shutdown also closes watch streams.
func WithHTTPServers() DependencyOption {
	return func(d *dependencies) error {
		router, err := inboundhttp.NewRouter(inboundhttp.RouterConfig{
			App:              d.apps.webApp,
			Logger:           d.infra.logger,
			MetricsClient:    d.infra.metricsClient,
			TracerProvider:   d.infra.tracerProvider,
			Config:           d.config,
			IdempotencyCache: d.repos.idempotencyRepo,
			RateLimitStore:   d.repos.rateLimitStore,
		})
		if err != nil {
			return fmt.Errorf("building router: %w", err)
		}

		baseContext := func(net.Listener) context.Context { return d.baseCtx }

		public := d.config.PublicHTTPServer
		d.infra.publicHTTPServer = &http.Server{
			Addr:         net.JoinHostPort(public.Host, fmt.Sprintf("%d", public.Port)),
			Handler:      router,
			ReadTimeout:  public.ReadTimeout,
			WriteTimeout: public.WriteTimeout,
			IdleTimeout:  public.IdleTimeout,
			BaseContext:  baseContext,
		}

		admin := d.config.AdminHTTPServer
		if !admin.Enabled {
			return nil
		}

		d.infra.adminHTTPServer = &http.Server{
			Addr: net.JoinHostPort(admin.Host, fmt.Sprintf("%d", admin.Port)),
			Handler: inboundhttp.NewAdminRouter(inboundhttp.AdminRouterConfig{
				App:           d.apps.webApp,
				Logger:        d.infra.logger,
				MetricsClient: d.infra.metricsClient,
				Config:        d.config,
			}),
			ReadTimeout:  admin.ReadTimeout,
			WriteTimeout: admin.WriteTimeout,
			IdleTimeout:  admin.IdleTimeout,
			BaseContext:  baseContext,
		}

		return nil
	}
}

func probeConfig(cfg config.Probes) probes.Config {
	return probes.Config{
		InactivityWindow:          cfg.InactivityWindow,
		StorageSoftLimitBytes:     cfg.StorageSoftLimitBytes,
		PerformanceSamples:        cfg.PerformanceSamples,
		LatencyWarning:            cfg.LatencyWarning,
		LatencyError:              cfg.LatencyError,
		RequiredPolicies:          cfg.RequiredPolicies,
		BackupWindow:              cfg.BackupWindow,
		BackupStaleAfter:          cfg.BackupStaleAfter,
		BackupWarningRate:         cfg.BackupWarningRate,
		BackupErrorRate:           cfg.BackupErrorRate,
		LogWindow:                 cfg.LogWindow,
		LogWarningRate:            cfg.LogWarningRate,
		LogErrorRate:              cfg.LogErrorRate,
		AuthErrorClusterThreshold: cfg.AuthErrorClusterThreshold,
	}
}

func withLogOutput(w io.Writer) DependencyOption {
	return func(d *dependencies) error {
		d.logOutput = w

		return nil
	}
}
