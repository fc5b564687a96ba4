package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"habit-sync/internal/logs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *logs.Logger) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	logger := logs.NewLogger(50, logs.DEBUG)
	client, err := NewClient(server.URL+"/api", logger, opts...)
	require.NoError(t, err)
	return client, logger
}

func TestClient(t *testing.T) {
	t.Run("GetJSONDecodesBody", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/habits", r.URL.Path)
			assert.Equal(t, "Bearer t0k", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`[{"id":"h1"}]`))
		}, WithToken("t0k"))

		var got []map[string]string
		require.NoError(t, client.GetJSON(context.Background(), "/habits", &got))
		assert.Equal(t, "h1", got[0]["id"])
	})

	t.Run("PostJSONSendsBody", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var body map[string]int
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 3, body["count"])
			w.WriteHeader(http.StatusNoContent)
		})

		err := client.PostJSON(context.Background(), "habits/h1/checkins", map[string]int{"count": 3}, &struct{}{})
		assert.NoError(t, err)
	})

	t.Run("ServerErrorIsRetryable", func(t *testing.T) {
		client, logger := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "db down", http.StatusServiceUnavailable)
		})

		err := client.GetJSON(context.Background(), "/habits", nil)

		var serr *StatusError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, http.StatusServiceUnavailable, serr.StatusCode)
		assert.Contains(t, serr.Body, "db down")
		assert.True(t, serr.Retryable())

		entries := logger.GetLast(10)
		require.NotEmpty(t, entries)
		assert.Equal(t, logs.WARN, entries[len(entries)-1].Level)
		assert.Equal(t, "remote", entries[len(entries)-1].Namespace)
	})

	t.Run("ClientErrorsAreClassified", func(t *testing.T) {
		cases := []struct {
			status     int
			validation bool
			auth       bool
			notFound   bool
		}{
			{http.StatusBadRequest, true, false, false},
			{http.StatusUnprocessableEntity, true, false, false},
			{http.StatusUnauthorized, false, true, false},
			{http.StatusForbidden, false, true, false},
			{http.StatusNotFound, false, false, true},
		}
		for _, tc := range cases {
			serr := &StatusError{StatusCode: tc.status}
			assert.False(t, serr.Retryable(), tc.status)
			assert.Equal(t, tc.validation, serr.IsValidation(), tc.status)
			assert.Equal(t, tc.auth, serr.IsAuth(), tc.status)
			assert.Equal(t, tc.notFound, serr.IsNotFound(), tc.status)
		}
	})

	t.Run("NoResponseIsNetworkError", func(t *testing.T) {
		logger := logs.NewLogger(10, logs.DEBUG)
		client, err := NewClient("127.0.0.1:1", logger)
		require.NoError(t, err)

		err = client.GetJSON(context.Background(), "/habits", nil)

		var nerr *NetworkError
		require.True(t, errors.As(err, &nerr))
		assert.True(t, nerr.Retryable())
	})

	t.Run("MissingBaseURL", func(t *testing.T) {
		_, err := NewClient("  ", logs.NewLogger(1, logs.DEBUG))
		assert.Error(t, err)
	})
}
