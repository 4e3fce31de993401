package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TokenHeader carries the API token as an alternative to a bearer token
const TokenHeader = "X-Nova-Token"

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware adds request logging and, when observer is non-nil, request metrics
func LoggingMiddleware(logger *zap.Logger, observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			if observer != nil {
				observer.ObserveRequest(r.Method, routeLabel(r.URL.Path), rw.statusCode, duration)
			}

			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", rw.statusCode),
				zap.Int64("duration_ms", duration.Milliseconds()))
		})
	}
}

// routeLabel maps a path to a bounded set of metric labels
func routeLabel(p string) string {
	switch {
	case p == "/health", p == "/metrics", p == "/scheme":
		return p
	case p == "/api/downloads":
		return "/api/downloads"
	case strings.HasSuffix(p, "/cancel") && strings.HasPrefix(p, "/api/downloads/"):
		return "/api/downloads/{id}/cancel"
	case strings.HasSuffix(p, "/open-folder") && strings.HasPrefix(p, "/api/downloads/"):
		return "/api/downloads/{id}/open-folder"
	case strings.HasPrefix(p, "/api/downloads/"):
		return "/api/downloads/{id}"
	case strings.HasPrefix(p, "/api/"):
		return "/api/other"
	default:
		return "scheme"
	}
}

// TokenAuthMiddleware requires the configured API token. An empty token
// disables the check.
func TokenAuthMiddleware(token string, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if token == "" {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(TokenHeader)
			if presented == "" {
				presented = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}

			if presented == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="nova"`)
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="nova"`)
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				logger.Warn("failed API authentication attempt",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr))
				return
			}

			next(w, r)
		}
	}
}
