// Package server provides shared middleware for the chordshift HTTP server.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/FocuswithJustin/chordshift/internal/logging"
)

// SlowRequestThreshold marks requests logged at warn level by TimingMiddleware.
const SlowRequestThreshold = 100 * time.Millisecond

// CORSConfig holds CORS middleware configuration.
type CORSConfig struct {
	AllowedOrigins []string // List of allowed origins, empty = allow all (*)
}

// CORSMiddlewareWithConfig adds CORS headers to responses with configurable origins.
// If AllowedOrigins is empty, it defaults to "*" (allow all origins).
// If AllowedOrigins contains specific origins, it validates the request Origin header.
func CORSMiddlewareWithConfig(cfg CORSConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowedOrigin := "*"
		if len(cfg.AllowedOrigins) > 0 {
			allowed := false
			for _, allowedOrig := range cfg.AllowedOrigins {
				if origin == allowedOrig {
					allowed = true
					allowedOrigin = origin
					break
				}
			}
			if !allowed {
				// No CORS headers: the browser blocks the response.
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if allowedOrigin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ParseOrigins splits a comma-separated origin list, dropping blanks.
func ParseOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// TimingMiddleware logs request duration, at warn level above SlowRequestThreshold.
func TimingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		duration := time.Since(start)
		if duration > SlowRequestThreshold {
			logging.Warn("slow request", "method", r.Method, "path", r.URL.Path, "duration_ms", duration.Milliseconds())
			return
		}
		logging.Debug("request timing", "method", r.Method, "path", r.URL.Path, "duration_ms", duration.Milliseconds())
	})
}
