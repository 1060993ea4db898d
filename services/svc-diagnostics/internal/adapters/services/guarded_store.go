package services

import (
	"context"
	"errors"
	"time"

	"github.com/architeacher/diagnostics/pkg/circuitbreaker"
	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

// GuardedStore fails monitored store reads fast while the store is down, so an
// outage costs each probe one rejected call instead of a full timeout.
type GuardedStore struct {
	store   ports.MonitoredStore
	breaker *circuitbreaker.CircuitBreaker[any]
}

var _ ports.MonitoredStore = (*GuardedStore)(nil)

func NewGuardedStore(store ports.MonitoredStore, cfg circuitbreaker.Config, log logger.Logger) *GuardedStore {
	breaker := circuitbreaker.New[any](
		cfg,
		circuitbreaker.WithIgnoredErrors(isCallerError),
		circuitbreaker.WithStateChange(func(name, from, to string) {
			log.Warn().
				Str("breaker", name).
				Str("from", from).
				Str("to", to).
				Msg("monitored store circuit breaker changed state")
		}),
	)

	return &GuardedStore{store: store, breaker: breaker}
}

// State exposes the breaker state to readiness checks.
func (g *GuardedStore) State() string {
	return g.breaker.State()
}

func (g *GuardedStore) Ping(ctx context.Context) error {
	_, err := circuitbreaker.Execute(g.breaker, func() (any, error) {
		return nil, g.store.Ping(ctx)
	})

	return err
}

func (g *GuardedStore) Count(ctx context.Context, collection ports.Collection, filter ports.CountFilter) (int64, error) {
	return guard(g.breaker, func() (int64, error) {
		return g.store.Count(ctx, collection, filter)
	})
}

func (g *GuardedStore) EstimateSize(ctx context.Context, collection ports.Collection) (int64, error) {
	return guard(g.breaker, func() (int64, error) {
		return g.store.EstimateSize(ctx, collection)
	})
}

func (g *GuardedStore) LatestTimestamp(ctx context.Context, collection ports.Collection, filter ports.CountFilter) (time.Time, error) {
	return guard(g.breaker, func() (time.Time, error) {
		return g.store.LatestTimestamp(ctx, collection, filter)
	})
}

func guard[T any](breaker *circuitbreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	var zero T

	v, err := circuitbreaker.Execute(breaker, func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}

	return v.(T), nil
}

// isCallerError reports failures that say nothing about the store's health.
func isCallerError(err error) bool {
	return errors.Is(err, model.ErrUnknownCollection) ||
		errors.Is(err, context.Canceled)
}
