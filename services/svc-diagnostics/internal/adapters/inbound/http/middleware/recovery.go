package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/gorilla/websocket"
)

// Recovery turns a handler panic into a 500 envelope. Hijacked websocket
// connections get no envelope, the stream is simply dropped.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}

				// the client connection is aborted on purpose, let net/http handle it
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				var errMsg string
				switch v := rvr.(type) {
				case string:
					errMsg = v
				case error:
					errMsg = v.Error()
				default:
					errMsg = fmt.Sprintf("%v", v)
				}

				reqLog := log.WithContext(r.Context())
				reqLog.Error().
					Str("error", errMsg).
					Str("stack", string(debug.Stack())).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Msg("panic recovered")

				if websocket.IsWebSocketUpgrade(r) {
					return
				}

				writeError(w, http.StatusInternalServerError, CodeInternalError, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
