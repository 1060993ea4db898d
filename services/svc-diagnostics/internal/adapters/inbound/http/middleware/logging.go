package middleware

import (
	"net/http"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
)

type AccessLogger struct {
	log logger.Logger
}

func NewAccessLogger(log logger.Logger) *AccessLogger {
	return &AccessLogger{log: log.Named("http")}
}

func (a *AccessLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ShouldSkipAccessLog(r.Context()) {
			next.ServeHTTP(w, r)

			return
		}

		start := time.Now()
		wrapped := NewStatusRecorder(w)

		next.ServeHTTP(wrapped, r)

		reqLogger := a.log.WithContext(r.Context())

		event := reqLogger.Info()
		switch status := wrapped.StatusCode(); {
		case status >= http.StatusInternalServerError:
			event = reqLogger.Error()
		case status >= http.StatusBadRequest:
			event = reqLogger.Warn()
		}

		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Str("proto", r.Proto).
			Int("status", wrapped.StatusCode()).
			Uint64("bytes", wrapped.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds())

		if r.URL.RawQuery != "" {
			event.Str("query", r.URL.RawQuery)
		}

		event.Msg("request served")
	})
}
