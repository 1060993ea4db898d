package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/architeacher/diagnostics/pkg/idempotency"
	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/config"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

const maxFingerprintedBody = 1 << 20

// Idempotency replays the stored 2xx response of a POST carrying a known
// Idempotency-Key. Keys are scoped to the caller, so two callers never collide.
func Idempotency(
	cache ports.IdempotencyCache,
	cfg config.Idempotency,
	log logger.Logger,
) func(http.Handler) http.Handler {
	log = log.Named("idempotency")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotency.HeaderName)
			if !cfg.Enabled || cache == nil || r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)

				return
			}

			if err := idempotency.Validate(key); err != nil {
				writeError(w, http.StatusBadRequest, CodeInvalidIdempotencyKey, err.Error())

				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxFingerprintedBody))
			if err != nil {
				writeError(w, http.StatusBadRequest, CodeValidationError, "failed to read request body")

				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := idempotency.Fingerprint(body)

			subject := ""
			if identity, ok := IdentityFromContext(r.Context()); ok {
				subject = identity.Subject
			}

			ctx := r.Context()
			cacheKey := idempotency.BuildCacheKey(subject, r.Method, r.URL.Path, key)
			reqLog := log.WithContext(ctx).With().Str("idempotency_key", key).Logger()

			cached, err := cache.Get(ctx, cacheKey)
			if err != nil {
				reqLog.Warn().Err(err).Msg("idempotency lookup failed")
				degrade(w, r, next, cfg)

				return
			}

			if cached != nil {
				if cached.Fingerprint != "" && cached.Fingerprint != fingerprint {
					writeError(w, http.StatusUnprocessableEntity, CodeIdempotencyKeyReused,
						"idempotency key was already used with a different request body")

					return
				}

				replay(w, cfg, cached)

				return
			}

			acquired, err := cache.SetLock(ctx, cacheKey, cfg.LockTTL)
			if err != nil {
				reqLog.Warn().Err(err).Msg("idempotency lock failed")
				degrade(w, r, next, cfg)

				return
			}

			if !acquired {
				writeError(w, http.StatusConflict, CodeRequestInProgress,
					"a request with this idempotency key is already being processed")

				return
			}

			defer func() {
				if err := cache.ReleaseLock(context.WithoutCancel(ctx), cacheKey); err != nil {
					reqLog.Warn().Err(err).Msg("failed to release idempotency lock")
				}
			}()

			recorder := newResponseRecorder(w)
			next.ServeHTTP(recorder, r.WithContext(idempotency.WithKey(ctx, key)))

			if recorder.statusCode < http.StatusOK || recorder.statusCode >= http.StatusMultipleChoices {
				return
			}

			response := &ports.CachedResponse{
				StatusCode:  recorder.statusCode,
				Headers:     recorder.capturedHeaders(),
				Body:        recorder.body.Bytes(),
				Fingerprint: fingerprint,
				CreatedAt:   time.Now().UTC(),
			}

			if err := cache.Set(context.WithoutCancel(ctx), cacheKey, response, cfg.CacheTTL); err != nil {
				reqLog.Warn().Err(err).Msg("failed to store idempotent response")
			}
		})
	}
}

func replay(w http.ResponseWriter, cfg config.Idempotency, cached *ports.CachedResponse) {
	for key, value := range cached.Headers {
		w.Header().Set(key, value)
	}

	w.Header().Set(cfg.ReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func degrade(w http.ResponseWriter, r *http.Request, next http.Handler, cfg config.Idempotency) {
	if cfg.GracefulDegraded {
		next.ServeHTTP(w, r)

		return
	}

	writeError(w, http.StatusServiceUnavailable, CodeCacheUnavailable,
		"idempotency service temporarily unavailable")
}

// responseRecorder tees the response so it can be stored after the handler returns.
type responseRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	body        *bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}

	r.statusCode = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}

	r.body.Write(b)

	return r.ResponseWriter.Write(b)
}

// capturedHeaders keeps the content headers only. Per-request ids must not be replayed.
func (r *responseRecorder) capturedHeaders() map[string]string {
	headers := make(map[string]string)

	for _, key := range []string{"Content-Type", "Location"} {
		if value := r.ResponseWriter.Header().Get(key); value != "" {
			headers[key] = value
		}
	}

	return headers
}
