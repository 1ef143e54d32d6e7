package middleware

import (
	"log"
	"net/http"
	"time"
)

// responseWriter captures the status code written by the handler
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logger logs one line per request with status, latency and cache outcome
func Logger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{w, http.StatusOK}

			next.ServeHTTP(rw, r)

			cacheHit := rw.Header().Get(CacheHitHeader)
			if cacheHit == "" {
				cacheHit = "false"
			}

			logger.Printf("%s %s | status: %d | latency: %v | cache_hit: %s",
				r.Method, r.URL.Path, rw.statusCode, time.Since(start), cacheHit)
		})
	}
}

// CacheHitHeader is set by handlers that served an answer from cache
const CacheHitHeader = "X-Cache-Hit"
