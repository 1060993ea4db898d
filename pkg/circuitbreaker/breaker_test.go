package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

func testConfig(name string, threshold uint) Config {
	return Config{
		Name:             name,
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: threshold,
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	require.Nil(t, New[int](Config{Name: "off"}))

	cb := New[int](testConfig("monitored-store", 3))
	require.NotNil(t, cb)
	require.Equal(t, "monitored-store", cb.Name())
	require.Equal(t, "closed", cb.State())
}

func TestExecute(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		cb        *CircuitBreaker[int64]
		fn        func() (int64, error)
		wantVal   int64
		errSubstr string
	}{
		{
			name:    "returns the value through a closed breaker",
			cb:      New[int64](testConfig("ok", 3)),
			fn:      func() (int64, error) { return 42, nil },
			wantVal: 42,
		},
		{
			name:    "nil breaker passes through",
			fn:      func() (int64, error) { return 7, nil },
			wantVal: 7,
		},
		{
			name:      "surfaces the call error",
			cb:        New[int64](testConfig("err", 3)),
			fn:        func() (int64, error) { return 0, errors.New("count failed") },
			errSubstr: "count failed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Execute(tc.cb, tc.fn)

			if tc.errSubstr != "" {
				require.ErrorContains(t, err, tc.errSubstr)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantVal, got)
		})
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	var (
		mu          sync.Mutex
		transitions []string
	)

	cb := New[int64](testConfig("store", 2), WithStateChange(func(_, from, to string) {
		mu.Lock()
		defer mu.Unlock()

		transitions = append(transitions, from+"->"+to)
	}))

	for range 2 {
		_, err := Execute(cb, func() (int64, error) { return 0, errors.New("down") })
		require.Error(t, err)
	}

	calls := 0
	_, err := Execute(cb, func() (int64, error) {
		calls++

		return 1, nil
	})

	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Zero(t, calls)
	require.Equal(t, "open", cb.State())

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	cb := New[int64](testConfig("lookup", 1), WithIgnoredErrors(func(err error) bool {
		return errors.Is(err, errNotFound)
	}))

	for range 3 {
		_, err := Execute(cb, func() (int64, error) { return 0, errNotFound })
		require.ErrorIs(t, err, errNotFound)
	}

	require.Equal(t, "closed", cb.State())
}

func TestCircuitBreaker_HalfOpenLimitsRequests(t *testing.T) {
	t.Parallel()

	cfg := testConfig("half-open", 1)
	cfg.Timeout = 20 * time.Millisecond

	cb := New[int64](cfg)

	_, err := Execute(cb, func() (int64, error) { return 0, errors.New("down") })
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return cb.State() == "half-open"
	}, time.Second, 5*time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		_, _ = Execute(cb, func() (int64, error) {
			close(started)
			<-release

			return 1, nil
		})
	}()

	<-started

	_, err = Execute(cb, func() (int64, error) { return 2, nil })
	require.ErrorIs(t, err, ErrTooManyRequests)

	close(release)
	<-done

	require.Equal(t, "closed", cb.State())
}
