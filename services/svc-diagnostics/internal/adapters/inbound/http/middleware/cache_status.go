package middleware

import (
	"net/http"

	"github.com/architeacher/diagnostics/pkg/decorator"
)

const CacheStatusHeader = "X-Cache"

// CacheStatus lets caching query decorators report HIT, MISS, BYPASS or ERROR
// back to the handler, which echoes it in CacheStatusHeader.
func CacheStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(decorator.TrackCacheStatus(r.Context())))
	})
}
