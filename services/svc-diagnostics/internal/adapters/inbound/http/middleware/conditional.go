package middleware

import (
	"bytes"
	"net/http"

	"github.com/gorilla/websocket"
)

const (
	headerETag        = "ETag"
	headerIfNoneMatch = "If-None-Match"
)

// bufferedResponseWriter holds the whole response back until the handler returns.
type bufferedResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (w *bufferedResponseWriter) WriteHeader(code int) {
	if w.statusCode == 0 {
		w.statusCode = code
	}
}

func (w *bufferedResponseWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}

	return w.body.Write(b)
}

func (w *bufferedResponseWriter) status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}

	return w.statusCode
}

// ConditionalGET tags 200 responses with an ETag and answers a matching
// If-None-Match with 304 and no body.
func ConditionalGET() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if (r.Method != http.MethodGet && r.Method != http.MethodHead) || websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)

				return
			}

			brw := &bufferedResponseWriter{ResponseWriter: w}

			next.ServeHTTP(brw, r)

			status := brw.status()
			if status != http.StatusOK {
				w.WriteHeader(status)
				_, _ = w.Write(brw.body.Bytes())

				return
			}

			etag := ETag(brw.body.Bytes())
			w.Header().Set(headerETag, etag)

			if ifNoneMatch := r.Header.Get(headerIfNoneMatch); ifNoneMatch != "" && etagMatches(ifNoneMatch, etag) {
				w.Header().Del("Content-Length")
				w.WriteHeader(http.StatusNotModified)

				return
			}

			w.WriteHeader(status)
			_, _ = w.Write(brw.body.Bytes())
		})
	}
}
