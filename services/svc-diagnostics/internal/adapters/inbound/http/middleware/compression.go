package middleware

import (
	"cmp"
	"compress/flate"
	"compress/gzip"
	"io"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/architeacher/diagnostics/pkg/metrics"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/config"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

const (
	encodingGzip    = "gzip"
	encodingBrotli  = "br"
	encodingDeflate = "deflate"

	compressionAlgorithmKey = "compression.algorithm"

	httpCompressedResponses = "http.server.compressed_responses"
	httpCompressionSaved    = "http.server.compression.saved_bytes"
)

var compressibleTypes = []string{
	"application/json",
	"application/problem+json",
	"application/yaml",
	"text/plain",
}

// serverPreference breaks ties between encodings of equal quality.
var serverPreference = []string{encodingGzip, encodingBrotli, encodingDeflate}

type acceptEncoding struct {
	encoding string
	quality  float64
}

type encoderPools struct {
	gzip    sync.Pool
	brotli  sync.Pool
	deflate sync.Pool
}

func newEncoderPools(level int) *encoderPools {
	// gzip and deflate top out at 9, brotli at 11
	flateLevel := min(max(level, flate.BestSpeed), flate.BestCompression)

	return &encoderPools{
		gzip: sync.Pool{New: func() any {
			w, _ := gzip.NewWriterLevel(io.Discard, flateLevel)

			return w
		}},
		brotli: sync.Pool{New: func() any {
			return brotli.NewWriterLevel(io.Discard, min(level, brotli.BestCompression))
		}},
		deflate: sync.Pool{New: func() any {
			w, _ := flate.NewWriter(io.Discard, flateLevel)

			return w
		}},
	}
}

// encode writes body to w with the named encoding and returns the encoder to its pool.
func (p *encoderPools) encode(encoding string, w io.Writer, body []byte) error {
	switch encoding {
	case encodingGzip:
		enc := p.gzip.Get().(*gzip.Writer)
		defer p.gzip.Put(enc)
		enc.Reset(w)

		return writeAndClose(enc, body)
	case encodingBrotli:
		enc := p.brotli.Get().(*brotli.Writer)
		defer p.brotli.Put(enc)
		enc.Reset(w)

		return writeAndClose(enc, body)
	default:
		enc := p.deflate.Get().(*flate.Writer)
		defer p.deflate.Put(enc)
		enc.Reset(w)

		return writeAndClose(enc, body)
	}
}

func writeAndClose(enc io.WriteCloser, body []byte) error {
	if _, err := enc.Write(body); err != nil {
		return err
	}

	return enc.Close()
}

// Compression encodes JSON responses of at least MinSize bytes with the best
// encoding the client accepts. Websocket upgrades pass through untouched.
func Compression(cfg config.Compression, metricsClient metrics.Client) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	pools := newEncoderPools(cfg.Level)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
			if encoding == "" || r.Method == http.MethodHead || websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)

				return
			}

			w.Header().Add("Vary", "Accept-Encoding")

			brw := &bufferedResponseWriter{ResponseWriter: w}
			next.ServeHTTP(brw, r)

			body := brw.body.Bytes()
			status := brw.status()

			if !shouldCompress(w.Header(), status, len(body), cfg.MinSize) {
				w.WriteHeader(status)
				_, _ = w.Write(body)

				return
			}

			w.Header().Set("Content-Encoding", encoding)
			w.Header().Del("Content-Length")
			w.WriteHeader(status)

			counter := &countingWriter{w: w}
			if err := pools.encode(encoding, counter, body); err != nil {
				return
			}

			attrs := attribute.String(compressionAlgorithmKey, encoding)
			metricsClient.Inc(r.Context(), httpCompressedResponses, int64(1), attrs)
			metricsClient.Inc(r.Context(), httpCompressionSaved, max(int64(len(body))-counter.n, 0), attrs)
		})
	}
}

func shouldCompress(header http.Header, status, size, minSize int) bool {
	if status < http.StatusOK || status == http.StatusNoContent || status == http.StatusNotModified {
		return false
	}

	if size < minSize || header.Get("Content-Encoding") != "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		return false
	}

	return slices.Contains(compressibleTypes, mediaType)
}

// negotiateEncoding picks the highest quality supported encoding. Ties follow serverPreference.
func negotiateEncoding(header string) string {
	if header == "" {
		return ""
	}

	accepted := parseAcceptEncoding(header)

	quality := func(encoding string) float64 {
		wildcard := -1.0

		for _, a := range accepted {
			switch a.encoding {
			case encoding:
				return a.quality
			case "*":
				wildcard = a.quality
			}
		}

		return wildcard
	}

	candidates := slices.Clone(serverPreference)
	slices.SortStableFunc(candidates, func(a, b string) int {
		return cmp.Compare(quality(b), quality(a))
	})

	if best := candidates[0]; quality(best) > 0 {
		return best
	}

	return ""
}

func parseAcceptEncoding(header string) []acceptEncoding {
	parts := strings.Split(header, ",")
	encodings := make([]acceptEncoding, 0, len(parts))

	for _, part := range parts {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if name == "" {
			continue
		}

		q := 1.0

		if value, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}

			q = parsed
		}

		encodings = append(encodings, acceptEncoding{encoding: strings.ToLower(name), quality: q})
	}

	return encodings
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)

	return n, err
}
