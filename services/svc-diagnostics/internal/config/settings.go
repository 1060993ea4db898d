package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
)

const (
	Development = 1 << iota
	Sandbox
	Staging
	Production
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type (
	ServiceConfig struct {
		App                   App                   `json:"app"`
		SecretsStorage        SecretsStorage        `json:"secrets_storage"`
		PublicHTTPServer      PublicHTTPServer      `json:"public_http_server"`
		AdminHTTPServer       AdminHTTPServer       `json:"admin_http_server"`
		Auth                  Auth                  `json:"auth"`
		Orchestrator          Orchestrator          `json:"orchestrator"`
		Probes                Probes                `json:"probes"`
		Storage               Storage               `json:"storage"`
		Database              Database              `json:"database"`
		Cache                 Cache                 `json:"cache"`
		RunsCache             RunsCache             `json:"runs_cache"`
		ThrottledRateLimiting ThrottledRateLimiting `json:"throttled_rate_limiting"`
		Idempotency           Idempotency           `json:"idempotency"`
		CircuitBreaker        CircuitBreaker        `json:"circuit_breaker"`
		Backoff               Backoff               `json:"backoff"`
		Compression           Compression           `json:"compression"`
		Watch                 Watch                 `json:"watch"`
		Logging               Logging               `json:"logging"`
		Telemetry             Telemetry             `json:"telemetry"`
	}

	App struct {
		ServiceName string      `envconfig:"APP_SERVICE_NAME" default:"svc-diagnostics" json:"service_name"`
		APIVersion  string      `envconfig:"APP_API_VERSION" default:"v1" json:"api_version"`
		Env         Environment `json:"environment"`
	}

	Environment struct {
		Name string `envconfig:"APP_ENVIRONMENT" default:"development" json:"env"`
	}

	SecretsStorage struct {
		Enabled       bool          `envconfig:"VAULT_ENABLED" default:"false" json:"enabled"`
		Address       string        `envconfig:"VAULT_ADDRESS" default:"http://vault:8200" json:"address"`
		Token         string        `envconfig:"VAULT_TOKEN" default:"" json:"-"`
		RoleID        string        `envconfig:"VAULT_ROLE_ID" default:"" json:"-"`
		SecretID      string        `envconfig:"VAULT_SECRET_ID" default:"" json:"-"`
		AuthMethod    string        `envconfig:"VAULT_AUTH_METHOD" default:"token" json:"auth_method"`
		MountPath     string        `envconfig:"VAULT_MOUNT_PATH" default:"svc-diagnostics" json:"mount_path"`
		Namespace     string        `envconfig:"VAULT_NAMESPACE" default:"" json:"namespace,omitempty"`
		Timeout       time.Duration `envconfig:"VAULT_TIMEOUT" default:"30s" json:"timeout"`
		MaxRetries    uint          `envconfig:"VAULT_MAX_RETRIES" default:"3" json:"max_retries"`
		TLSSkipVerify bool          `envconfig:"VAULT_TLS_SKIP_VERIFY" default:"false" json:"tls_skip_verify"`
		PollInterval  time.Duration `envconfig:"VAULT_POLL_INTERVAL" default:"24h" json:"poll_interval"`
	}

	PublicHTTPServer struct {
		Host            string        `envconfig:"HTTP_SERVER_HOST" default:"0.0.0.0" json:"host"`
		Port            uint          `envconfig:"HTTP_SERVER_PORT" default:"8080" json:"port"`
		ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
	}

	AdminHTTPServer struct {
		Enabled         bool          `envconfig:"ADMIN_HTTP_SERVER_ENABLED" default:"true" json:"enabled"`
		Host            string        `envconfig:"ADMIN_HTTP_SERVER_HOST" default:"127.0.0.1" json:"host"`
		Port            uint          `envconfig:"ADMIN_HTTP_SERVER_PORT" default:"8081" json:"port"`
		ReadTimeout     time.Duration `envconfig:"ADMIN_HTTP_READ_TIMEOUT" default:"5s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"ADMIN_HTTP_WRITE_TIMEOUT" default:"10s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"ADMIN_HTTP_IDLE_TIMEOUT" default:"60s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"ADMIN_HTTP_SHUTDOWN_TIMEOUT" default:"10s" json:"shutdown_timeout"`
	}

	// Auth configures bearer token verification. Tokens are HS256 JWTs whose
	// "roles" claim must contain AdminRole to start or delete runs.
	Auth struct {
		Enabled   bool          `envconfig:"AUTH_ENABLED" default:"true" json:"enabled"`
		SecretKey string        `envconfig:"AUTH_SECRET_KEY" default:"" json:"-"`
		Issuer    string        `envconfig:"AUTH_ISSUER" default:"" json:"issuer"`
		Audience  string        `envconfig:"AUTH_AUDIENCE" default:"" json:"audience"`
		AdminRole string        `envconfig:"AUTH_ADMIN_ROLE" default:"admin" json:"admin_role"`
		Leeway    time.Duration `envconfig:"AUTH_LEEWAY" default:"30s" json:"leeway"`
	}

	Orchestrator struct {
		PacingDelay   time.Duration `envconfig:"ORCHESTRATOR_PACING_DELAY" default:"500ms" json:"pacing_delay"`
		ProbeTimeout  time.Duration `envconfig:"ORCHESTRATOR_PROBE_TIMEOUT" default:"30s" json:"probe_timeout"`
		ShutdownGrace time.Duration `envconfig:"ORCHESTRATOR_SHUTDOWN_GRACE" default:"20s" json:"shutdown_grace"`
	}

	Probes struct {
		InactivityWindow          time.Duration `envconfig:"PROBES_INACTIVITY_WINDOW" default:"168h" json:"inactivity_window"`
		StorageSoftLimitBytes     int64         `envconfig:"PROBES_STORAGE_SOFT_LIMIT_BYTES" default:"1073741824" json:"storage_soft_limit_bytes"`
		PerformanceSamples        int           `envconfig:"PROBES_PERFORMANCE_SAMPLES" default:"3" json:"performance_samples"`
		LatencyWarning            time.Duration `envconfig:"PROBES_LATENCY_WARNING" default:"1s" json:"latency_warning"`
		LatencyError              time.Duration `envconfig:"PROBES_LATENCY_ERROR" default:"2s" json:"latency_error"`
		RequiredPolicies          []string      `envconfig:"PROBES_REQUIRED_POLICIES" default:"password,session,access_control" json:"required_policies"`
		BackupWindow              time.Duration `envconfig:"PROBES_BACKUP_WINDOW" default:"48h" json:"backup_window"`
		BackupStaleAfter          time.Duration `envconfig:"PROBES_BACKUP_STALE_AFTER" default:"24h" json:"backup_stale_after"`
		BackupWarningRate         float64       `envconfig:"PROBES_BACKUP_WARNING_RATE" default:"90" json:"backup_warning_rate"`
		BackupErrorRate           float64       `envconfig:"PROBES_BACKUP_ERROR_RATE" default:"50" json:"backup_error_rate"`
		LogWindow                 time.Duration `envconfig:"PROBES_LOG_WINDOW" default:"24h" json:"log_window"`
		LogWarningRate            float64       `envconfig:"PROBES_LOG_WARNING_RATE" default:"5" json:"log_warning_rate"`
		LogErrorRate              float64       `envconfig:"PROBES_LOG_ERROR_RATE" default:"20" json:"log_error_rate"`
		AuthErrorClusterThreshold int64         `envconfig:"PROBES_AUTH_ERROR_CLUSTER_THRESHOLD" default:"10" json:"auth_error_cluster_threshold"`
	}

	Storage struct {
		Driver string `envconfig:"STORAGE_DRIVER" default:"postgres" json:"driver"`
	}

	Database struct {
		Host            string        `envconfig:"POSTGRES_HOST" default:"postgres" json:"host"`
		Port            uint          `envconfig:"POSTGRES_PORT" default:"5432" json:"port"`
		Database        string        `envconfig:"POSTGRES_DATABASE" default:"diagnostics" json:"database"`
		Username        string        `envconfig:"POSTGRES_USERNAME" default:"postgres" json:"username"`
		Password        string        `envconfig:"POSTGRES_PASSWORD" default:"" json:"-"`
		SSLMode         string        `envconfig:"POSTGRES_SSL_MODE" default:"disable" json:"ssl_mode"`
		MaxConnections  int32         `envconfig:"POSTGRES_MAX_CONNECTIONS" default:"25" json:"max_connections"`
		MinConnections  int32         `envconfig:"POSTGRES_MIN_CONNECTIONS" default:"2" json:"min_connections"`
		ConnectTimeout  time.Duration `envconfig:"POSTGRES_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		MaxConnLifetime time.Duration `envconfig:"POSTGRES_MAX_CONN_LIFETIME" default:"1h" json:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `envconfig:"POSTGRES_MAX_CONN_IDLE_TIME" default:"30m" json:"max_conn_idle_time"`
	}

	Cache struct {
		Enabled       bool          `envconfig:"CACHE_ENABLED" default:"true" json:"enabled"`
		Address       string        `envconfig:"CACHE_ADDRESS" default:"keydb:6379" json:"address"`
		Password      string        `envconfig:"CACHE_PASSWORD" default:"" json:"-"`
		DB            uint          `envconfig:"CACHE_DB" default:"0" json:"db"`
		PoolSize      uint          `envconfig:"CACHE_POOL_SIZE" default:"10" json:"pool_size"`
		MinIdleConns  uint          `envconfig:"CACHE_MIN_IDLE_CONNS" default:"2" json:"min_idle_conns"`
		DialTimeout   time.Duration `envconfig:"CACHE_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout   time.Duration `envconfig:"CACHE_READ_TIMEOUT" default:"3s" json:"read_timeout"`
		WriteTimeout  time.Duration `envconfig:"CACHE_WRITE_TIMEOUT" default:"3s" json:"write_timeout"`
		PoolTimeout   time.Duration `envconfig:"CACHE_POOL_TIMEOUT" default:"5s" json:"pool_timeout"`
		MaxRetries    uint          `envconfig:"CACHE_MAX_RETRIES" default:"3" json:"max_retries"`
		DefaultExpiry time.Duration `envconfig:"CACHE_DEFAULT_EXPIRY" default:"24h" json:"default_expiry"`
	}

	RunsCache struct {
		Enabled bool          `envconfig:"RUNS_CACHE_ENABLED" default:"true" json:"enabled"`
		TTL     time.Duration `envconfig:"RUNS_CACHE_TTL" default:"10m" json:"ttl"`
		MaxAge  uint          `envconfig:"RUNS_CACHE_MAX_AGE" default:"60" json:"max_age"`
	}

	ThrottledRateLimiting struct {
		Enabled           bool     `envconfig:"RATE_LIMITING_ENABLED" default:"true" json:"enabled"`
		RequestsPerMinute uint     `envconfig:"RATE_LIMITING_REQUESTS_PER_MINUTE" default:"10" json:"requests_per_minute"`
		BurstSize         uint     `envconfig:"RATE_LIMITING_BURST_SIZE" default:"5" json:"burst_size"`
		Methods           []string `envconfig:"RATE_LIMITING_METHODS" default:"POST" json:"methods"`
		GracefulDegraded  bool     `envconfig:"RATE_LIMITING_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	Idempotency struct {
		Enabled          bool          `envconfig:"IDEMPOTENCY_ENABLED" default:"true" json:"enabled"`
		CacheTTL         time.Duration `envconfig:"IDEMPOTENCY_CACHE_TTL" default:"24h" json:"cache_ttl"`
		LockTTL          time.Duration `envconfig:"IDEMPOTENCY_LOCK_TTL" default:"30s" json:"lock_ttl"`
		ReplayedHeader   string        `envconfig:"IDEMPOTENCY_REPLAYED_HEADER" default:"Idempotent-Replayed" json:"replayed_header"`
		GracefulDegraded bool          `envconfig:"IDEMPOTENCY_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	// CircuitBreaker guards the monitored store so an outage fails probes fast.
	CircuitBreaker struct {
		Enabled          bool          `envconfig:"MONITORED_STORE_CB_ENABLED" default:"true" json:"enabled"`
		MaxRequests      uint          `envconfig:"MONITORED_STORE_CB_MAX_REQUESTS" default:"1" json:"max_requests"`
		Interval         time.Duration `envconfig:"MONITORED_STORE_CB_INTERVAL" default:"60s" json:"interval"`
		Timeout          time.Duration `envconfig:"MONITORED_STORE_CB_TIMEOUT" default:"30s" json:"timeout"`
		FailureThreshold uint          `envconfig:"MONITORED_STORE_CB_FAILURE_THRESHOLD" default:"5" json:"failure_threshold"`
	}

	Backoff struct {
		BaseDelay  time.Duration `envconfig:"BACKOFF_BASE_DELAY" default:"1s" json:"base_delay"`
		Multiplier float64       `envconfig:"BACKOFF_MULTIPLIER" default:"1.5" json:"multiplier"`
		Jitter     float64       `envconfig:"BACKOFF_JITTER" default:"0.3" json:"jitter"`
		MaxDelay   time.Duration `envconfig:"BACKOFF_MAX_DELAY" default:"10s" json:"max_delay"`
		MaxElapsed time.Duration `envconfig:"BACKOFF_MAX_ELAPSED" default:"1m" json:"max_elapsed"`
	}

	Compression struct {
		Enabled bool `envconfig:"COMPRESSION_ENABLED" default:"true" json:"enabled"`
		Level   int  `envconfig:"COMPRESSION_LEVEL" default:"5" json:"level"`
		MinSize int  `envconfig:"COMPRESSION_MIN_SIZE" default:"1024" json:"min_size"`
	}

	Watch struct {
		PollInterval time.Duration `envconfig:"WATCH_POLL_INTERVAL" default:"500ms" json:"poll_interval"`
		WriteTimeout time.Duration `envconfig:"WATCH_WRITE_TIMEOUT" default:"5s" json:"write_timeout"`
	}

	Logging struct {
		Level     string    `envconfig:"LOG_LEVEL" default:"info" json:"level"`
		Format    string    `envconfig:"LOG_FORMAT" default:"json" json:"format"`
		AccessLog AccessLog `json:"access_log"`
	}

	AccessLog struct {
		Enabled         bool `envconfig:"ACCESS_LOG_ENABLED" default:"true" json:"enabled"`
		LogHealthChecks bool `envconfig:"ACCESS_LOG_HEALTH_CHECKS" default:"false" json:"log_health_checks"`
	}

	Telemetry struct {
		Enabled      bool   `envconfig:"OTEL_ENABLED" default:"false" json:"enabled"`
		ExporterType string `envconfig:"OTEL_EXPORTER" default:"grpc" json:"exporter_type"`
		OtelGRPCHost string `envconfig:"OTEL_HOST" json:"otel_grpc_host"`
		OtelGRPCPort string `envconfig:"OTEL_PORT" default:"4317" json:"otel_grpc_port"`

		Metrics Metrics `json:"metrics"`
		Traces  Traces  `json:"traces"`
	}

	Metrics struct {
		Enabled bool `envconfig:"METRICS_ENABLED" default:"true" json:"enabled"`
	}

	Traces struct {
		Enabled      bool    `envconfig:"TRACES_ENABLED" default:"false" json:"enabled"`
		SamplerRatio float64 `envconfig:"TRACES_SAMPLER_RATIO" default:"1.0" json:"sampler_ratio"`
	}
)

func (c *ServiceConfig) GetEnvironment() int {
	switch c.App.Env.Name {
	case "production", "prod":
		return Production
	case "staging", "stg":
		return Staging
	case "sandbox", "sbx":
		return Sandbox
	default:
		return Development
	}
}

func (c *ServiceConfig) IsProduction() bool {
	return c.GetEnvironment() == Production
}

// Validate rejects combinations the service cannot start with.
func (c *ServiceConfig) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.Storage.Driver))
	}

	if c.Auth.Enabled && c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("auth is enabled but AUTH_SECRET_KEY is empty"))
	}

	if c.Orchestrator.PacingDelay < 0 || c.Orchestrator.ProbeTimeout < 0 {
		errs = append(errs, errors.New("orchestrator durations must be non-negative"))
	}

	if c.Probes.PerformanceSamples < 1 {
		errs = append(errs, fmt.Errorf("performance samples must be at least 1, got %d", c.Probes.PerformanceSamples))
	}

	if c.Probes.LatencyWarning > c.Probes.LatencyError {
		errs = append(errs, errors.New("latency warning threshold exceeds the error threshold"))
	}

	if c.Compression.Enabled && (c.Compression.Level < 1 || c.Compression.Level > 11) {
		errs = append(errs, fmt.Errorf("compression level must be between 1 and 11, got %d", c.Compression.Level))
	}

	return errors.Join(errs...)
}

// DSN renders the pgx connection string.
func (d Database) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Database,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}

	return u.String()
}
