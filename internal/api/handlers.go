package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"habit-sync/internal/cache"
	"habit-sync/internal/connectivity"
	"habit-sync/internal/habits"
	"habit-sync/internal/health"
	"habit-sync/internal/logs"
	"habit-sync/internal/metrics"
	"habit-sync/internal/queue"
)

const defaultLogLimit = 50

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	metrics  *metrics.Registry
	logger   *logs.Logger
	analyzer *health.Analyzer
	queue    *queue.Queue
	monitor  *connectivity.Monitor
	cache    *cache.Cache
	habits   HabitService
}

// HabitService is the habit list the admin routes act on.
type HabitService interface {
	List() []habits.Habit
	Load(ctx context.Context, force bool) error
	CheckIn(ctx context.Context, id string) error
	Update(ctx context.Context, h habits.Habit) error
	UpdateMany(ctx context.Context, updates []habits.Habit) error
}

// NewHandler creates a new API handler.
func NewHandler(
	metrics *metrics.Registry,
	logger *logs.Logger,
	queue *queue.Queue,
	monitor *connectivity.Monitor,
	cache *cache.Cache,
	habitService HabitService,
) *Handler {
	return &Handler{
		metrics:  metrics,
		logger:   logger,
		analyzer: health.NewAnalyzer(metrics, logger, monitor),
		queue:    queue,
		monitor:  monitor,
		cache:    cache,
		habits:   habitService,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

/* ---------------- GET /metrics ---------------- */

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

/* ---------------- GET /metrics/timings ---------------- */

type timingView struct {
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (h *Handler) GetTimings(w http.ResponseWriter, r *http.Request) {
	timings := h.metrics.Timings()

	resp := make(map[string]timingView, len(timings))
	for name, t := range timings {
		resp[name] = timingView{
			Count:   t.Count,
			TotalMs: millis(t.Total),
			AvgMs:   millis(t.Average()),
			MinMs:   millis(t.Min),
			MaxMs:   millis(t.Max),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

/* ---------------- GET /health ---------------- */

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzer.Analyze())
}

/* ---------------- GET /logs?n= ---------------- */

func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	n := defaultLogLimit
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = v
	}
	writeJSON(w, http.StatusOK, h.logger.GetLast(n))
}

/* ---------------- GET /queue ---------------- */

type queueResponse struct {
	Processing bool           `json:"processing"`
	Pending    []queue.Action `json:"pending"`
}

func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, queueResponse{
		Processing: h.queue.Processing(),
		Pending:    h.queue.Pending(),
	})
}

/* ---------------- POST /queue/process ---------------- */

type processResponse struct {
	Processed int    `json:"processed"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	if !h.monitor.IsOnline() {
		http.Error(w, "offline", http.StatusConflict)
		return
	}

	n, err := h.queue.Process(r.Context())
	resp := processResponse{Processed: n, Remaining: h.queue.Len()}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

/* ---------------- DELETE /queue/{id} ---------------- */

func (h *Handler) DeleteAction(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/queue/")
	if id == "" {
		http.Error(w, "missing action id", http.StatusBadRequest)
		return
	}

	found, err := h.queue.Remove(id)
	if !found {
		http.Error(w, "action not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.WarnErr("removed action not persisted", err, map[string]string{"id": id})
	}
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- GET|PUT /connectivity ---------------- */

type connectivityBody struct {
	Online bool `json:"online"`
}

func (h *Handler) GetConnectivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, connectivityBody{Online: h.monitor.IsOnline()})
}

// SetConnectivity forces the monitor state, standing in for the platform
// signal when testing offline behaviour by hand.
func (h *Handler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	h.monitor.SetOnline(req.Online)
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- DELETE /cache ---------------- */

func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cache.ClearAll()
	if err != nil {
		h.logger.ErrorErr("clear cache", err, nil)
		http.Error(w, "failed to clear cache", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

/* ---------------- GET|PUT /habits ---------------- */

func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.habits.List())
}

func (h *Handler) RefreshHabits(w http.ResponseWriter, r *http.Request) {
	if err := h.habits.Load(r.Context(), true); err != nil {
		h.writeHabitError(w, "refresh habits", err)
		return
	}
	writeJSON(w, http.StatusOK, h.habits.List())
}

func (h *Handler) UpdateHabits(w http.ResponseWriter, r *http.Request) {
	var req []habits.Habit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.habits.UpdateMany(r.Context(), req); err != nil {
		h.writeHabitError(w, "update habits", err)
		return
	}
	writeJSON(w, http.StatusOK, h.habits.List())
}

/* ---------------- PUT /habits/{id}, POST /habits/{id}/checkins ---------------- */

func (h *Handler) UpdateHabit(w http.ResponseWriter, r *http.Request, id string) {
	var req habits.Habit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ID = id
	if err := h.habits.Update(r.Context(), req); err != nil {
		h.writeHabitError(w, "update habit", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// CheckInHabit answers 202 because an offline check-in is queued rather
// than sent.
func (h *Handler) CheckInHabit(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.habits.CheckIn(r.Context(), id); err != nil {
		h.writeHabitError(w, "check in", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) writeHabitError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, habits.ErrHabitNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.logger.ErrorErr(op, err, nil)
	http.Error(w, err.Error(), http.StatusBadGateway)
}
