package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/architeacher/diagnostics/pkg/decorator"
	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestRecovery(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	handler := middleware.Recovery(logger.NewBufferedTestLogger(&logs))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("probe registry corrupted")
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-checks", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, middleware.CodeInternalError, decodeError(t, rec).Code)
	require.Contains(t, logs.String(), "probe registry corrupted")
	require.Contains(t, logs.String(), "panic recovered")
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	t.Parallel()

	handler := middleware.Recovery(logger.NewTestLogger())(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		}),
	)

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestTracking(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		requestID     string
		correlationID string
		echoed        bool
	}{
		{name: "mints missing ids"},
		{name: "echoes incoming ids", requestID: "req-1", correlationID: "corr-1", echoed: true},
		{name: "replaces ids with whitespace", requestID: "req 1", correlationID: "corr 1"},
		{name: "replaces overlong ids", requestID: strings.Repeat("r", 129), correlationID: strings.Repeat("c", 129)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var seenRequestID, seenCorrelationID string

			handler := middleware.RequestTracking()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seenRequestID = middleware.GetRequestID(r.Context())
				seenCorrelationID = middleware.GetCorrelationID(r.Context())
			}))

			r := httptest.NewRequest(http.MethodGet, "/health-checks", nil)
			if tc.requestID != "" {
				r.Header.Set(middleware.RequestIDHeader, tc.requestID)
				r.Header.Set(middleware.CorrelationIDHeader, tc.correlationID)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			require.NotEmpty(t, seenRequestID)
			require.NotEmpty(t, seenCorrelationID)
			require.Equal(t, seenRequestID, rec.Header().Get(middleware.RequestIDHeader))
			require.Equal(t, seenCorrelationID, rec.Header().Get(middleware.CorrelationIDHeader))

			if tc.echoed {
				require.Equal(t, tc.requestID, seenRequestID)
				require.Equal(t, tc.correlationID, seenCorrelationID)

				return
			}

			require.NotEqual(t, tc.requestID, seenRequestID)
			require.NotEqual(t, tc.correlationID, seenCorrelationID)
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	middleware.SecurityHeaders("v1")(writeJSON(http.StatusOK, `{}`)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-checks", nil))

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	require.Equal(t, "v1", rec.Header().Get("API-Version"))
}

func TestCORS(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		allowed        []string
		origin         string
		method         string
		expectedStatus int
		expectAllowed  bool
	}{
		{name: "listed origin", allowed: []string{"https://ops.example.com"}, origin: "https://ops.example.com", method: http.MethodGet, expectedStatus: http.StatusOK, expectAllowed: true},
		{name: "unlisted origin", allowed: []string{"https://ops.example.com"}, origin: "https://evil.example.com", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://any.example.com", method: http.MethodGet, expectedStatus: http.StatusOK, expectAllowed: true},
		{name: "preflight", allowed: []string{"*"}, origin: "https://any.example.com", method: http.MethodOptions, expectedStatus: http.StatusNoContent, expectAllowed: true},
		{name: "same origin", allowed: []string{"*"}, method: http.MethodGet, expectedStatus: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(tc.method, "/health-checks", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}

			rec := httptest.NewRecorder()
			middleware.CORS(tc.allowed)(writeJSON(http.StatusOK, `{}`)).ServeHTTP(rec, r)

			require.Equal(t, tc.expectedStatus, rec.Code)

			if tc.expectAllowed {
				require.Equal(t, tc.origin, rec.Header().Get("Access-Control-Allow-Origin"))
				require.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Cache")
			} else {
				require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestAccessLogger(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name            string
		path            string
		status          int
		logHealthChecks bool
		expectLogged    bool
		expectedLevel   string
	}{
		{name: "api request", path: "/health-checks", status: http.StatusOK, expectLogged: true, expectedLevel: "info"},
		{name: "client error", path: "/health-checks", status: http.StatusNotFound, expectLogged: true, expectedLevel: "warn"},
		{name: "server error", path: "/health-checks", status: http.StatusServiceUnavailable, expectLogged: true, expectedLevel: "error"},
		{name: "probe endpoint filtered", path: "/readyz", status: http.StatusOK},
		{name: "probe endpoint logged on request", path: "/livez", status: http.StatusOK, logHealthChecks: true, expectLogged: true, expectedLevel: "info"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var logs bytes.Buffer

			access := middleware.NewAccessLogger(logger.NewBufferedTestLogger(&logs))
			filter := middleware.NewHealthCheckFilter(tc.logHealthChecks)
			handler := filter.Middleware(access.Middleware(writeJSON(tc.status, `{"ok":true}`)))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path+"?verbose=1", nil))

			if !tc.expectLogged {
				require.Empty(t, logs.String())

				return
			}

			var entry map[string]any
			require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
			require.Equal(t, tc.expectedLevel, entry["level"])
			require.Equal(t, "request served", entry["message"])
			require.Equal(t, tc.path, entry["path"])
			require.Equal(t, "verbose=1", entry["query"])
			require.EqualValues(t, tc.status, entry["status"])
			require.EqualValues(t, len(`{"ok":true}`), entry["bytes"])
		})
	}
}

func TestMetricsMiddleware(t *testing.T) {
	t.Parallel()

	metricsClient := &recordingMetrics{}

	r := chi.NewRouter()
	r.Use(middleware.NewMetricsMiddleware(metricsClient).Middleware)
	r.Get("/health-checks", writeJSON(http.StatusOK, `{"runs":[],"count":0}`))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health-checks?limit=5", nil))

	requests, ok := metricsClient.find("http.server.requests")
	require.True(t, ok)
	require.Equal(t, int64(1), requests.value)
	require.Equal(t, "/health-checks", requests.attrs["http.route"])
	require.Equal(t, "200", requests.attrs["http.status_code"])
	require.Equal(t, http.MethodGet, requests.attrs["http.method"])

	size, ok := metricsClient.find("http.server.response.size")
	require.True(t, ok)
	require.Equal(t, int64(len(`{"runs":[],"count":0}`)), size.value)

	_, ok = metricsClient.find("http.server.request.duration_ms")
	require.True(t, ok)
}

func TestCacheStatus(t *testing.T) {
	t.Parallel()

	var status decorator.CacheStatus

	handler := middleware.CacheStatus(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		status = decorator.GetCacheStatus(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health-checks", nil))

	require.Equal(t, decorator.CacheStatusBypass, status)
}
