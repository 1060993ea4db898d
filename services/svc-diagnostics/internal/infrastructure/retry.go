package infrastructure

import (
	"context"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/config"
	"github.com/cenkalti/backoff/v5"
)

// NewExponentialBackOff builds the shared retry schedule.
func NewExponentialBackOff(cfg config.Backoff) *backoff.ExponentialBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.BaseDelay
	exp.Multiplier = cfg.Multiplier
	exp.RandomizationFactor = cfg.Jitter
	exp.MaxInterval = cfg.MaxDelay

	return exp
}

// Retry runs op until it succeeds, returns a backoff.Permanent error, or the
// configured elapsed budget runs out.
func Retry[T any](ctx context.Context, cfg config.Backoff, op func() (T, error)) (T, error) {
	opts := []backoff.RetryOption{backoff.WithBackOff(NewExponentialBackOff(cfg))}

	if cfg.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(cfg.MaxElapsed))
	}

	return backoff.Retry(ctx, op, opts...)
}
