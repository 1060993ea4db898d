package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func writeJSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

type recordedMetric struct {
	key   string
	value any
	attrs map[string]string
}

// recordingMetrics captures every Inc call for later inspection.
type recordingMetrics struct {
	mu      sync.Mutex
	metrics []recordedMetric
}

func (m *recordingMetrics) Inc(_ context.Context, key string, value any, attributes ...attribute.KeyValue) {
	attrs := make(map[string]string, len(attributes))
	for _, attr := range attributes {
		attrs[string(attr.Key)] = attr.Value.Emit()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics = append(m.metrics, recordedMetric{key: key, value: value, attrs: attrs})
}

func (m *recordingMetrics) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (m *recordingMetrics) Shutdown(context.Context) error {
	return nil
}

func (m *recordingMetrics) find(key string) (recordedMetric, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, metric := range m.metrics {
		if metric.key == key {
			return metric, true
		}
	}

	return recordedMetric{}, false
}
