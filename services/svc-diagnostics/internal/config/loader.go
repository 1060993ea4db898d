package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/vault/api"
	"github.com/kelseyhightower/envconfig"
)

var ErrSecretsStorageDisabled = errors.New("secret storage is not enabled")

// secretTargets maps vault keys to the config fields they override.
var secretTargets = map[string]func(*ServiceConfig, string){
	"POSTGRES_PASSWORD": func(c *ServiceConfig, v string) { c.Database.Password = v },
	"AUTH_SECRET_KEY":   func(c *ServiceConfig, v string) { c.Auth.SecretKey = v },
	"CACHE_PASSWORD":    func(c *ServiceConfig, v string) { c.Cache.Password = v },
}

type Loader struct {
	mu          sync.Mutex
	cfg         *ServiceConfig
	secretsRepo ports.SecretsRepository
	signals     chan os.Signal
	reloads     chan error
	dump        io.Writer
	lastVersion uint
}

func Init() (*ServiceConfig, error) {
	cfg := &ServiceConfig{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("unable to parse service configuration: %w", err)
	}

	return cfg, nil
}

func NewLoader(cfg *ServiceConfig, secretsRepo ports.SecretsRepository, initialVersion uint) *Loader {
	return &Loader{
		cfg:         cfg,
		secretsRepo: secretsRepo,
		signals:     make(chan os.Signal, 1),
		reloads:     make(chan error, 1),
		dump:        os.Stdout,
		lastVersion: initialVersion,
	}
}

// WatchConfigSignals reloads secrets on SIGHUP or every poll interval and dumps
// the redacted config on SIGUSR1. The returned channel reports reload outcomes.
func (l *Loader) WatchConfigSignals(ctx context.Context) <-chan error {
	signal.Notify(l.signals, syscall.SIGHUP, syscall.SIGUSR1)

	var poll <-chan time.Time

	if l.cfg.SecretsStorage.Enabled && l.cfg.SecretsStorage.PollInterval > 0 {
		ticker := time.NewTicker(l.cfg.SecretsStorage.PollInterval)
		poll = ticker.C

		context.AfterFunc(ctx, ticker.Stop)
	}

	go func() {
		defer signal.Stop(l.signals)
		defer close(l.reloads)

		for {
			select {
			case <-ctx.Done():
				return
			case <-poll:
				l.reload(ctx)
			case sig := <-l.signals:
				switch sig {
				case syscall.SIGHUP:
					l.reload(ctx)
				case syscall.SIGUSR1:
					l.DumpConfig()
				}
			}
		}
	}()

	return l.reloads
}

func (l *Loader) DumpConfig() {
	l.mu.Lock()
	defer l.mu.Unlock()

	configJSON, err := json.MarshalIndent(l.cfg, "", "  ")
	if err != nil {
		fmt.Fprintf(l.dump, "error marshaling config: %v\n", err)

		return
	}

	fmt.Fprintf(l.dump, "\n=== Configuration Dump ===\n%s\n=== End Configuration ===\n\n", configJSON)
}

// Load authenticates against vault, applies the current secrets and returns their version.
func (l *Loader) Load(ctx context.Context) (uint, error) {
	if !l.cfg.SecretsStorage.Enabled {
		return 0, ErrSecretsStorageDisabled
	}

	if err := authenticateVault(ctx, l.secretsRepo, l.cfg.SecretsStorage); err != nil {
		return 0, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	secret, err := l.readSecret(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load secrets from Vault: %w", err)
	}

	data, err := section(secret, "data")
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	applySecrets(l.cfg, data)
	l.mu.Unlock()

	metadata, err := section(secret, "metadata")
	if err != nil {
		return 0, err
	}

	return secretVersion(metadata)
}

func (l *Loader) reload(ctx context.Context) {
	secret, err := l.readSecret(ctx)
	if err != nil {
		l.report(fmt.Errorf("failed to load secret metadata: %w", err))

		return
	}

	metadata, err := section(secret, "metadata")
	if err != nil {
		l.report(err)

		return
	}

	version, err := secretVersion(metadata)
	if err != nil {
		l.report(err)

		return
	}

	if version == l.lastVersion {
		return
	}

	version, err = l.Load(ctx)
	if err != nil {
		l.report(err)

		return
	}

	l.lastVersion = version
	l.report(nil)
}

func (l *Loader) readSecret(ctx context.Context) (*api.Secret, error) {
	storage := l.cfg.SecretsStorage
	path := fmt.Sprintf("apps/data/%s", storage.MountPath)

	ctx, cancel := context.WithTimeout(ctx, storage.Timeout)
	defer cancel()

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = l.cfg.Backoff.BaseDelay
	expBackoff.Multiplier = l.cfg.Backoff.Multiplier
	expBackoff.RandomizationFactor = l.cfg.Backoff.Jitter
	expBackoff.MaxInterval = l.cfg.Backoff.MaxDelay

	secret, err := backoff.Retry(
		ctx,
		func() (*api.Secret, error) {
			return l.secretsRepo.GetSecrets(ctx, path)
		},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(storage.MaxRetries+1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read from path %s: %w", path, err)
	}

	return secret, nil
}

func (l *Loader) report(err error) {
	select {
	case l.reloads <- err:
	default:
	}
}

func authenticateVault(ctx context.Context, client ports.SecretsRepository, storage SecretsStorage) error {
	switch strings.ToLower(storage.AuthMethod) {
	case "token":
		if storage.Token == "" {
			return errors.New("token is required for token auth method")
		}

		client.SetToken(storage.Token)

		return nil

	case "approle":
		if storage.RoleID == "" || storage.SecretID == "" {
			return errors.New("role_id and secret_id are required for approle auth method")
		}

		resp, err := client.WriteWithContext(ctx, "auth/approle/login", map[string]any{
			"role_id":   storage.RoleID,
			"secret_id": storage.SecretID,
		})
		if err != nil {
			return fmt.Errorf("failed to authenticate via approle: %w", err)
		}

		if resp == nil || resp.Auth == nil {
			return errors.New("no auth info returned from Vault")
		}

		client.SetToken(resp.Auth.ClientToken)

		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", storage.AuthMethod)
	}
}

func section(secret *api.Secret, name string) (map[string]any, error) {
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	raw, present := secret.Data[name]
	if !present || raw == nil {
		return nil, nil
	}

	values, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid secret format: %q is %T", name, raw)
	}

	return values, nil
}

func applySecrets(cfg *ServiceConfig, data map[string]any) {
	for key, value := range data {
		str, ok := value.(string)
		if !ok || str == "" {
			continue
		}

		if apply, known := secretTargets[key]; known {
			apply(cfg, str)
		}
	}
}

func secretVersion(metadata map[string]any) (uint, error) {
	current, ok := metadata["current_version"]
	if !ok {
		current, ok = metadata["version"]
	}

	if !ok {
		return 0, nil
	}

	switch v := current.(type) {
	case float64:
		return uint(v), nil
	case json.Number:
		version, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("failed to parse version: %w", err)
		}

		return uint(version), nil
	default:
		return 0, fmt.Errorf("unexpected version type: %T", current)
	}
}
