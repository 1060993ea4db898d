package middleware

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ETag returns a quoted strong entity tag for the representation.
func ETag(content []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(content), 16) + `"`
}

// etagMatches evaluates an If-None-Match header using the weak comparison.
func etagMatches(ifNoneMatch, etag string) bool {
	if strings.TrimSpace(ifNoneMatch) == "*" {
		return true
	}

	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}

	return false
}
