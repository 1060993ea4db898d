package probes

import (
	"context"
	"errors"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

var (
	errStoreDown = errors.New("connection refused")

	fixedNow = time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
)

type fakeStore struct {
	pingErr   error
	countFn   func(collection ports.Collection, filter ports.CountFilter) (int64, error)
	sizes     map[ports.Collection]int64
	sizeErr   error
	latest    time.Time
	latestErr error
}

func (f *fakeStore) Ping(_ context.Context) error {
	return f.pingErr
}

func (f *fakeStore) Count(_ context.Context, collection ports.Collection, filter ports.CountFilter) (int64, error) {
	if f.countFn == nil {
		return 0, nil
	}

	return f.countFn(collection, filter)
}

func (f *fakeStore) EstimateSize(_ context.Context, collection ports.Collection) (int64, error) {
	if f.sizeErr != nil {
		return 0, f.sizeErr
	}

	return f.sizes[collection], nil
}

func (f *fakeStore) LatestTimestamp(_ context.Context, _ ports.Collection, _ ports.CountFilter) (time.Time, error) {
	return f.latest, f.latestErr
}

func fixedClock() Option {
	return WithClock(func() time.Time { return fixedNow })
}

// countsBy answers counts from a lookup keyed by collection plus the "level", "role",
// "status", "kind" or "category" equality filters.
func countsBy(lookup map[string]int64) func(ports.Collection, ports.CountFilter) (int64, error) {
	return func(collection ports.Collection, filter ports.CountFilter) (int64, error) {
		key := string(collection)

		for _, field := range []string{"role", "kind", "status", "level", "category"} {
			if v, ok := filter.Equals[field]; ok {
				key += "|" + field + "=" + v
			}
		}

		if !filter.Since.IsZero() && filter.SinceField != "" {
			key += "|since:" + filter.SinceField
		}

		return lookup[key], nil
	}
}
