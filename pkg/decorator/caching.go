package decorator

import (
	"context"
	"sync"
	"time"
)

type (
	CacheStatus string

	cacheStatusKey struct{}

	cacheStatusRecorder struct {
		mu     sync.Mutex
		status CacheStatus
	}

	CacheConfig struct {
		Enabled bool
		TTL     time.Duration

		// WriteTimeout bounds the background write of a freshly loaded result.
		WriteTimeout time.Duration
	}

	// Cache is the read-through store behind a query. Implementations may
	// decline to store a result by returning nil from Set without writing.
	Cache[Q Query, R Result] interface {
		Get(ctx context.Context, query Q) (R, bool, error)
		Set(ctx context.Context, query Q, result R, ttl time.Duration) error
	}

	queryCachingDecorator[Q Query, R Result] struct {
		base   QueryHandler[Q, R]
		cache  Cache[Q, R]
		config CacheConfig
	}
)

const (
	CacheStatusHit    CacheStatus = "HIT"
	CacheStatusMiss   CacheStatus = "MISS"
	CacheStatusBypass CacheStatus = "BYPASS"
	CacheStatusError  CacheStatus = "ERROR"

	defaultCacheWriteTimeout = 2 * time.Second
)

// TrackCacheStatus returns a context in which caching decorators report how a
// query was served. The HTTP layer reads it back with GetCacheStatus.
func TrackCacheStatus(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheStatusKey{}, &cacheStatusRecorder{status: CacheStatusBypass})
}

// GetCacheStatus returns BYPASS when the context is untracked.
func GetCacheStatus(ctx context.Context) CacheStatus {
	if rec, ok := ctx.Value(cacheStatusKey{}).(*cacheStatusRecorder); ok {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		return rec.status
	}

	return CacheStatusBypass
}

func recordCacheStatus(ctx context.Context, status CacheStatus) {
	if rec, ok := ctx.Value(cacheStatusKey{}).(*cacheStatusRecorder); ok {
		rec.mu.Lock()
		rec.status = status
		rec.mu.Unlock()
	}
}

func NewQueryCachingDecorator[Q Query, R Result](
	base QueryHandler[Q, R],
	cache Cache[Q, R],
	config CacheConfig,
) QueryHandler[Q, R] {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultCacheWriteTimeout
	}

	return queryCachingDecorator[Q, R]{
		base:   base,
		cache:  cache,
		config: config,
	}
}

func (d queryCachingDecorator[Q, R]) Execute(ctx context.Context, query Q) (R, error) {
	if !d.config.Enabled || d.cache == nil {
		recordCacheStatus(ctx, CacheStatusBypass)

		return d.base.Execute(ctx, query)
	}

	cached, hit, err := d.cache.Get(ctx, query)
	switch {
	case err != nil:
		recordCacheStatus(ctx, CacheStatusError)
	case hit:
		recordCacheStatus(ctx, CacheStatusHit)

		return cached, nil
	default:
		recordCacheStatus(ctx, CacheStatusMiss)
	}

	result, err := d.base.Execute(ctx, query)
	if err != nil {
		return result, err
	}

	writeCtx := context.WithoutCancel(ctx)

	go func() {
		writeCtx, cancel := context.WithTimeout(writeCtx, d.config.WriteTimeout)
		defer cancel()

		_ = d.cache.Set(writeCtx, query, result, d.config.TTL)
	}()

	return result, nil
}
