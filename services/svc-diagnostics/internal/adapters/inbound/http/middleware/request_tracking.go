package middleware

import (
	"context"
	"net/http"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/google/uuid"
)

const (
	RequestIDHeader     = "Request-Id"
	CorrelationIDHeader = "Correlation-Id"

	maxTrackingIDLength = 128
)

// RequestTracking echoes or mints the request and correlation ids. Both land in
// the context under the logger keys so every log entry of the request carries them.
func RequestTracking() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := trackingID(r.Header.Get(CorrelationIDHeader))
			requestID := trackingID(r.Header.Get(RequestIDHeader))

			ctx := context.WithValue(r.Context(), logger.ContextKeyCorrelationID, correlationID)
			ctx = context.WithValue(ctx, logger.ContextKeyRequestID, requestID)

			w.Header().Set(CorrelationIDHeader, correlationID)
			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// trackingID keeps a caller supplied id when it is safe to log and mints a
// time ordered one otherwise.
func trackingID(supplied string) string {
	if supplied != "" && len(supplied) <= maxTrackingIDLength && isPrintableASCII(supplied) {
		return supplied
	}

	return uuid.Must(uuid.NewV7()).String()
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}

	return true
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(logger.ContextKeyRequestID).(string); ok {
		return id
	}

	return ""
}

func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(logger.ContextKeyCorrelationID).(string); ok {
		return id
	}

	return ""
}
