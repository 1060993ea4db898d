package infrastructure_test

import (
	"errors"
	"testing"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/config"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/infrastructure"
	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	t.Parallel()

	cfg := config.Backoff{
		BaseDelay:  time.Millisecond,
		Multiplier: 1.5,
		MaxDelay:   5 * time.Millisecond,
		MaxElapsed: time.Second,
	}

	cases := []struct {
		name          string
		failures      int
		permanent     bool
		expectedCalls int
		expectErr     bool
	}{
		{name: "succeeds first time", expectedCalls: 1},
		{name: "recovers after transient failures", failures: 2, expectedCalls: 3},
		{name: "stops on permanent error", failures: 5, permanent: true, expectedCalls: 1, expectErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls := 0

			value, err := infrastructure.Retry(t.Context(), cfg, func() (string, error) {
				calls++

				if calls <= tc.failures {
					if tc.permanent {
						return "", backoff.Permanent(errors.New("bad credentials"))
					}

					return "", errors.New("connection refused")
				}

				return "ok", nil
			})

			require.Equal(t, tc.expectedCalls, calls)

			if tc.expectErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.Equal(t, "ok", value)
		})
	}
}
