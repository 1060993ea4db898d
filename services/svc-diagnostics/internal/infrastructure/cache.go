package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/config"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

const healthProbeTimeout = 3 * time.Second

// compareAndSwapScript sets KEYS[1] to ARGV[2] with a PX of ARGV[3] when it currently holds ARGV[1].
var compareAndSwapScript = redis.NewScript(`
	local current = redis.call("GET", KEYS[1])
	if current == false or tonumber(current) ~= tonumber(ARGV[1]) then
		return 0
	end
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
`)

// KeydbClient is the redis protocol client shared by the run cache,
// idempotency and rate limit stores.
type KeydbClient struct {
	client        redis.UniversalClient
	logger        logger.Logger
	defaultExpiry time.Duration
}

func NewKeyDBClient(cfg config.Cache, log logger.Logger) *KeydbClient {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           int(cfg.DB),
		PoolSize:     int(cfg.PoolSize),
		MinIdleConns: int(cfg.MinIdleConns),
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
		MaxRetries:   int(cfg.MaxRetries),
	})

	return &KeydbClient{
		client:        client,
		logger:        log.Named("keydb"),
		defaultExpiry: cfg.DefaultExpiry,
	}
}

func (c *KeydbClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *KeydbClient) Close() error {
	return c.client.Close()
}

func (c *KeydbClient) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	return c.Ping(ctx) == nil
}

func (c *KeydbClient) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()

	value, err := c.client.Get(ctx, key).Bytes()

	c.trace("get", key, start, err)

	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("keydb get %s: %w", key, err)
	}

	return value, nil
}

// Set stores value with ttl, falling back to the configured default expiry when ttl is zero.
func (c *KeydbClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultExpiry
	}

	start := time.Now()
	err := c.client.Set(ctx, key, value, ttl).Err()

	c.trace("set", key, start, err)

	if err != nil {
		return fmt.Errorf("keydb set %s: %w", key, err)
	}

	return nil
}

// Lock acquires key with SETNX semantics.
func (c *KeydbClient) Lock(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	start := time.Now()
	acquired, err := c.client.SetNX(ctx, key, value, ttl).Result()

	c.trace("setnx", key, start, err)

	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}

	return acquired, nil
}

func (c *KeydbClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	start := time.Now()
	err := c.client.Del(ctx, keys...).Err()

	c.trace("del", keys[0], start, err)

	if err != nil {
		return fmt.Errorf("keydb delete: %w", err)
	}

	return nil
}

// GetInt64 returns the stored counter, or -1 when the key does not exist.
func (c *KeydbClient) GetInt64(ctx context.Context, key string) (int64, time.Time, error) {
	value, err := c.client.Get(ctx, key).Int64()

	switch {
	case errors.Is(err, redis.Nil):
		return -1, time.Now(), nil
	case err != nil:
		return 0, time.Time{}, err
	}

	return value, time.Now(), nil
}

func (c *KeydbClient) SetInt64NX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *KeydbClient) CompareAndSwapInt64(ctx context.Context, key string, old, new int64, ttl time.Duration) (bool, error) {
	swapped, err := compareAndSwapScript.Run(ctx, c.client, []string{key}, old, new, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}

	return swapped == 1, nil
}

func (c *KeydbClient) trace(op, key string, start time.Time, err error) {
	c.logger.Debug().
		Str("op", op).
		Str("key", key).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Bool("success", err == nil || errors.Is(err, redis.Nil)).
		Msg("keydb operation")
}
