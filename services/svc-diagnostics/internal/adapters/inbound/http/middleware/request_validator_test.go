package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/handlers"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/middleware"
	"github.com/stretchr/testify/require"
)

func TestRequestValidator(t *testing.T) {
	t.Parallel()

	swagger, err := handlers.GetSwagger()
	require.NoError(t, err)

	validate, err := middleware.RequestValidator(swagger)
	require.NoError(t, err)

	cases := []struct {
		name           string
		method         string
		target         string
		body           string
		headers        map[string]string
		expectedStatus int
		expectedCode   string
	}{
		{name: "start with defaults", method: http.MethodPost, target: "/health-checks", expectedStatus: http.StatusOK},
		{name: "start with settings", method: http.MethodPost, target: "/health-checks", body: `{"checkLogs":false,"includeMetrics":true}`, expectedStatus: http.StatusOK},
		{name: "unknown setting", method: http.MethodPost, target: "/health-checks", body: `{"checkEverything":true}`, expectedStatus: http.StatusBadRequest, expectedCode: middleware.CodeValidationError},
		{name: "non boolean setting", method: http.MethodPost, target: "/health-checks", body: `{"checkLogs":"yes"}`, expectedStatus: http.StatusBadRequest, expectedCode: middleware.CodeValidationError},
		{name: "short idempotency key", method: http.MethodPost, target: "/health-checks", headers: map[string]string{"Idempotency-Key": "short"}, expectedStatus: http.StatusBadRequest, expectedCode: middleware.CodeValidationError},
		{name: "list", method: http.MethodGet, target: "/health-checks?limit=10", expectedStatus: http.StatusOK},
		{name: "limit above maximum", method: http.MethodGet, target: "/health-checks?limit=101", expectedStatus: http.StatusBadRequest, expectedCode: middleware.CodeValidationError},
		{name: "limit below minimum", method: http.MethodGet, target: "/health-checks?limit=0", expectedStatus: http.StatusBadRequest, expectedCode: middleware.CodeValidationError},
		{name: "delete without id", method: http.MethodDelete, target: "/health-checks", expectedStatus: http.StatusBadRequest, expectedCode: middleware.CodeValidationError},
		{name: "unknown route", method: http.MethodGet, target: "/runs", expectedStatus: http.StatusNotFound, expectedCode: middleware.CodeNotFound},
		{name: "preflight skips validation", method: http.MethodOptions, target: "/runs", expectedStatus: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
			if tc.body != "" {
				r.Header.Set("Content-Type", "application/json")
			}

			for key, value := range tc.headers {
				r.Header.Set(key, value)
			}

			rec := httptest.NewRecorder()
			validate(writeJSON(http.StatusOK, `{}`)).ServeHTTP(rec, r)

			require.Equal(t, tc.expectedStatus, rec.Code)

			if tc.expectedCode != "" {
				require.Equal(t, tc.expectedCode, decodeError(t, rec).Code)
			}
		})
	}
}
