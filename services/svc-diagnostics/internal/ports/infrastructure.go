package ports

import (
	"context"
	"time"

	"github.com/hashicorp/vault/api"
)

// CachedResponse represents a cached HTTP response. Fingerprint identifies the
// request body that produced it.
type CachedResponse struct {
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers"`
	Body        []byte            `json:"body"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// IdempotencyCache defines the interface for idempotency caching operations.
type IdempotencyCache interface {
	// Get retrieves a cached response by idempotency key.
	// Returns nil, nil if the key does not exist.
	Get(ctx context.Context, key string) (*CachedResponse, error)

	Set(ctx context.Context, key string, response *CachedResponse, ttl time.Duration) error

	// SetLock returns false when another request already holds the key.
	SetLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	ReleaseLock(ctx context.Context, key string) error
}

// SecretsRepository reads the service secrets and performs the AppRole login
// that obtains the token for later reads.
type SecretsRepository interface {
	SetToken(v string)
	GetSecrets(ctx context.Context, path string) (*api.Secret, error)
	WriteWithContext(ctx context.Context, path string, data map[string]any) (*api.Secret, error)
}
