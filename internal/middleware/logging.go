package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"threat-cache/internal/common/logging"
	"threat-cache/internal/common/utils"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-ID"

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestID makes sure every request has an id. An incoming X-Request-ID is
// kept, otherwise a random one is generated. The id is echoed in the
// response and stored in the request context under logging.RequestIDKey.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = newRequestID()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), logging.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging returns a middleware that logs all HTTP requests with method,
// path, status, and duration. A nil logger uses the global one.
func Logging(logger logging.Logger) func(http.Handler) http.Handler {
	logger = logging.OrGlobal(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			fields := []logging.Field{
				{Key: "method", Value: r.Method},
				{Key: "path", Value: r.URL.Path},
				{Key: "status", Value: wrapped.statusCode},
				{Key: "duration_ms", Value: duration.Milliseconds()},
				{Key: "remote_addr", Value: r.RemoteAddr},
			}

			if r.URL.RawQuery != "" {
				fields = append(fields, logging.Field{Key: "query", Value: r.URL.RawQuery})
			}

			if ua := r.Header.Get("User-Agent"); ua != "" {
				fields = append(fields, logging.Field{Key: "user_agent", Value: ua})
			}

			// Set by auth.RequireJWT
			if userID := r.Header.Get("X-User-ID"); userID != "" {
				fields = append(fields, logging.Field{Key: "user_id", Value: userID})
			}

			reqLogger := logger.WithContext(r.Context())
			if wrapped.statusCode >= 500 {
				reqLogger.Error("HTTP request completed", nil, fields...)
			} else if wrapped.statusCode >= 400 {
				reqLogger.Warn("HTTP request completed", fields...)
			} else {
				reqLogger.Info("HTTP request completed", fields...)
			}
		})
	}
}

func newRequestID() string {
	id, err := utils.GenerateRequestID()
	if err != nil {
		return "req-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return id
}
