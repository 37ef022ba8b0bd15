package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"taxhist/internal/logging"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// maxRequestIDLen bounds caller-supplied request IDs before they reach logs.
const maxRequestIDLen = 64

// routeLabel maps a request path to its route template so per-entry paths
// do not each become a metric series.
func routeLabel(path string) string {
	switch path {
	case "/", "/health", "/metrics", "/history/taxonomy", "/history/taxonomy/reset", "/history/status":
		return path
	}
	if _, ok := historyPathParam(path, "/taxons/"); ok {
		return "/taxons/{name}/history"
	}
	if _, ok := historyPathParam(path, "/disciplines/"); ok {
		return "/disciplines/{name}/history"
	}
	return "other"
}

// requestFields describes what a history request asked for.
func requestFields(r *http.Request) map[string]interface{} {
	fields := map[string]interface{}{
		"method":    r.Method,
		"path":      r.URL.Path,
		"route":     routeLabel(r.URL.Path),
		"requestID": GetRequestID(r.Context()),
	}
	if name, ok := historyPathParam(r.URL.Path, "/taxons/"); ok {
		fields["taxon"] = name
	} else if name, ok := historyPathParam(r.URL.Path, "/disciplines/"); ok {
		fields["discipline"] = name
	}
	if refresh := r.URL.Query().Get("refresh"); refresh != "" {
		fields["refresh"] = refresh
	}
	return fields
}

// LoggingMiddleware logs one line per request and records request metrics.
// Server errors log at error level, client errors at warn.
func LoggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			route := routeLabel(r.URL.Path)
			httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
			httpDuration.WithLabelValues(route).Observe(duration.Seconds())

			fields := requestFields(r)
			fields["status"] = wrapped.statusCode
			fields["bytes"] = wrapped.written
			fields["durationMs"] = duration.Milliseconds()
			switch {
			case wrapped.statusCode >= 500:
				logger.Error("HTTP request failed", fields)
			case wrapped.statusCode >= 400:
				logger.Warn("HTTP request rejected", fields)
			default:
				logger.Info("HTTP request", fields)
			}
		})
	}
}

// RecoveryMiddleware turns a handler panic into a 500 response.
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					fields := requestFields(r)
					fields["error"] = fmt.Sprintf("%v", err)
					fields["stack"] = string(debug.Stack())
					logger.Error("Panic recovered", fields)

					InternalError(w, "Internal server error", fmt.Errorf("%v", err))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware propagates X-Request-ID, generating a uuid when the
// caller sent none or sent one unfit for logging.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if !validRequestID(reqID) {
				reqID = uuid.New().String()
			}

			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, reqID))
			w.Header().Set("X-Request-ID", reqID)

			next.ServeHTTP(w, r)
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// responseWriter records the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.written += n
	return n, err
}
