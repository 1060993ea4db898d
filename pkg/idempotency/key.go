package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
)

const (
	MinKeyLength = 16
	MaxKeyLength = 128
	KeyPrefix    = "diagnostics:idempotency"
	HeaderName   = "Idempotency-Key"
)

var (
	ErrKeyTooShort = errors.New("idempotency key must be at least 16 characters")
	ErrKeyTooLong  = errors.New("idempotency key must not exceed 128 characters")
	ErrKeyInvalid  = errors.New("idempotency key contains invalid characters")

	validKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

func Validate(key string) error {
	switch {
	case len(key) < MinKeyLength:
		return ErrKeyTooShort
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	case !validKeyPattern.MatchString(key):
		return ErrKeyInvalid
	}

	return nil
}

// BuildCacheKey scopes a client key to the caller and the endpoint, so two
// admins reusing the same key never share a stored response.
func BuildCacheKey(subject, method, path, idempotencyKey string) string {
	return KeyPrefix + ":" + digest(subject, method, path, idempotencyKey)
}

// LockKey is the key guarding in-flight requests for a cache key.
func LockKey(cacheKey string) string {
	return cacheKey + ":lock"
}

// Fingerprint identifies a request body so a replay with a different payload can be rejected.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)

	return hex.EncodeToString(sum[:8])
}

func digest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))

	return hex.EncodeToString(sum[:])
}
