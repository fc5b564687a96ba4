package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-sync/internal/logs"
)

func TestRecoveryMiddleware(t *testing.T) {
	logger := logs.NewLogger(10, logs.DEBUG)

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom!")
	})
	recoveredHandler := RecoveryMiddleware(logger)(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	recoveredHandler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal server error")

	entries := logger.GetLast(1)
	require.Len(t, entries, 1)
	assert.Equal(t, logs.ERROR, entries[0].Level)
	assert.Equal(t, "http", entries[0].Namespace)
	assert.Equal(t, "/", entries[0].Context["path"])
}

func TestLoggingMiddleware(t *testing.T) {
	logger := logs.NewLogger(10, logs.DEBUG)

	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/queue", nil))

	entries := logger.GetLast(1)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "GET /queue 418")
}

func TestChain(t *testing.T) {
	finalHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test", "true")
			next.ServeHTTP(w, r)
		})
	}

	chained := Chain(finalHandler, mw)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	chained.ServeHTTP(rr, req)

	assert.Equal(t, "true", rr.Header().Get("X-Test"))
	assert.Equal(t, http.StatusOK, rr.Code)
}
