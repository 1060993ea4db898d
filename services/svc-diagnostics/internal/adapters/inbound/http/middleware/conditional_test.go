package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/middleware"
	"github.com/stretchr/testify/require"
)

func TestConditionalGET(t *testing.T) {
	t.Parallel()

	const body = `{"id":"run-1","status":"completed"}`

	etag := middleware.ETag([]byte(body))

	cases := []struct {
		name           string
		method         string
		ifNoneMatch    string
		status         int
		expectedStatus int
		expectETag     bool
		expectBody     bool
	}{
		{name: "first fetch is tagged", method: http.MethodGet, status: http.StatusOK, expectedStatus: http.StatusOK, expectETag: true, expectBody: true},
		{name: "matching tag", method: http.MethodGet, ifNoneMatch: etag, status: http.StatusOK, expectedStatus: http.StatusNotModified, expectETag: true},
		{name: "weak matching tag", method: http.MethodGet, ifNoneMatch: `"stale", W/` + etag, status: http.StatusOK, expectedStatus: http.StatusNotModified, expectETag: true},
		{name: "wildcard", method: http.MethodGet, ifNoneMatch: "*", status: http.StatusOK, expectedStatus: http.StatusNotModified, expectETag: true},
		{name: "stale tag", method: http.MethodGet, ifNoneMatch: `"stale"`, status: http.StatusOK, expectedStatus: http.StatusOK, expectETag: true, expectBody: true},
		{name: "errors are not tagged", method: http.MethodGet, ifNoneMatch: etag, status: http.StatusNotFound, expectedStatus: http.StatusNotFound, expectBody: true},
		{name: "writes are not tagged", method: http.MethodPost, ifNoneMatch: etag, status: http.StatusOK, expectedStatus: http.StatusOK, expectBody: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler := middleware.ConditionalGET()(writeJSON(tc.status, body))

			r := httptest.NewRequest(tc.method, "/health-checks?id=run-1", nil)
			if tc.ifNoneMatch != "" {
				r.Header.Set("If-None-Match", tc.ifNoneMatch)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			require.Equal(t, tc.expectedStatus, rec.Code)

			if tc.expectETag {
				require.Equal(t, etag, rec.Header().Get("ETag"))
			} else {
				require.Empty(t, rec.Header().Get("ETag"))
			}

			if tc.expectBody {
				require.Equal(t, body, rec.Body.String())
			} else {
				require.Empty(t, rec.Body.String())
			}
		})
	}
}

func TestETag_ChangesWithContent(t *testing.T) {
	t.Parallel()

	a := middleware.ETag([]byte(`{"progress":50}`))
	b := middleware.ETag([]byte(`{"progress":51}`))

	require.NotEqual(t, a, b)
	require.Equal(t, a, middleware.ETag([]byte(`{"progress":50}`)))
	require.Regexp(t, `^"[0-9a-f]+"$`, a)
}
