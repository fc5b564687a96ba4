package api

import (
	"net/http"
	"strings"

	"habit-sync/internal/logs"
)

func RegisterRoutes(mux *http.ServeMux, h *Handler, logger *logs.Logger) http.Handler {
	// Observability APIs
	mux.HandleFunc("/metrics", h.GetMetrics)
	mux.HandleFunc("/metrics/timings", h.GetTimings)
	mux.HandleFunc("/health", h.GetHealth)
	mux.HandleFunc("/logs", h.GetLogs)

	// Queue APIs
	mux.HandleFunc("/queue", h.GetQueue)
	mux.HandleFunc("/queue/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/queue/process" && r.Method == http.MethodPost:
			h.ProcessQueue(w, r)
		case r.Method == http.MethodDelete:
			h.DeleteAction(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/connectivity", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.GetConnectivity(w, r)
		case http.MethodPut:
			h.SetConnectivity(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/cache", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ClearCache(w, r)
	})

	// Habit APIs
	if h.habits != nil {
		mux.HandleFunc("/habits", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				h.ListHabits(w, r)
			case http.MethodPut:
				h.UpdateHabits(w, r)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
		})
		mux.HandleFunc("/habits/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/habits/")
			id, sub, _ := strings.Cut(rest, "/")
			switch {
			case rest == "refresh" && r.Method == http.MethodPost:
				h.RefreshHabits(w, r)
			case id == "":
				http.Error(w, "missing habit id", http.StatusBadRequest)
			case sub == "checkins" && r.Method == http.MethodPost:
				h.CheckInHabit(w, r, id)
			case sub == "" && r.Method == http.MethodPut:
				h.UpdateHabit(w, r, id)
			case sub == "" || sub == "checkins":
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			default:
				http.NotFound(w, r)
			}
		})
	}

	// Middlewares
	return Chain(
		mux,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	)
}
