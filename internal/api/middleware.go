package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"habit-sync/internal/logs"
)

// Middleware types
type Middleware func(http.Handler) http.Handler

func Chain(h http.Handler, m ...Middleware) http.Handler {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func LoggingMiddleware(logger *logs.Logger) Middleware {
	logger = logger.With("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			logger.Debug(r.Method + " " + r.URL.Path + " " + strconv.Itoa(rw.status) + " " + time.Since(start).String())
		})
	}
}

// Recovery Middleware

func RecoveryMiddleware(logger *logs.Logger) Middleware {
	logger = logger.With("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.ErrorErr("panic recovered", fmt.Errorf("%v", v), map[string]string{
						"method": r.Method,
						"path":   r.URL.Path,
					})
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ResponseWriter wrapper
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
