package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
)

const skipAccessLogKey contextKey = "skip_access_log"

var probeEndpoints = []string{
	"/livez",
	"/readyz",
	"/metrics",
}

// HealthCheckFilter keeps orchestrator polling of the probe endpoints out of the access log.
type HealthCheckFilter struct {
	endpoints       []string
	logHealthChecks bool
}

func NewHealthCheckFilter(logHealthChecks bool) *HealthCheckFilter {
	return &HealthCheckFilter{
		endpoints:       probeEndpoints,
		logHealthChecks: logHealthChecks,
	}
}

func (h *HealthCheckFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.logHealthChecks || !slices.Contains(h.endpoints, strings.TrimSuffix(r.URL.Path, "/")) {
			next.ServeHTTP(w, r)

			return
		}

		ctx := context.WithValue(r.Context(), skipAccessLogKey, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ShouldSkipAccessLog(ctx context.Context) bool {
	skip, ok := ctx.Value(skipAccessLogKey).(bool)

	return ok && skip
}
