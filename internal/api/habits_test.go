package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-sync/internal/habits"
	"habit-sync/internal/remote"
)

type fakeHabits struct {
	mu      sync.Mutex
	list    []habits.Habit
	loads   int
	loadErr error
	sendErr error
}

func newFakeHabits() *fakeHabits {
	return &fakeHabits{list: []habits.Habit{
		{ID: "read", Name: "Read", Count: 1},
		{ID: "run", Name: "Run", Count: 4},
	}}
}

func (f *fakeHabits) List() []habits.Habit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]habits.Habit(nil), f.list...)
}

func (f *fakeHabits) Load(_ context.Context, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.loadErr
}

func (f *fakeHabits) CheckIn(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(id)
	if i < 0 {
		return fmt.Errorf("check in %q: %w", id, habits.ErrHabitNotFound)
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.list[i].Count++
	return nil
}

func (f *fakeHabits) Update(_ context.Context, h habits.Habit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(h.ID)
	if i < 0 {
		return fmt.Errorf("update %q: %w", h.ID, habits.ErrHabitNotFound)
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.list[i] = h
	return nil
}

func (f *fakeHabits) UpdateMany(_ context.Context, updates []habits.Habit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	for _, h := range updates {
		if i := f.index(h.ID); i >= 0 {
			f.list[i] = h
		}
	}
	return nil
}

func (f *fakeHabits) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func (f *fakeHabits) failWith(loadErr, sendErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr, f.sendErr = loadErr, sendErr
}

func (f *fakeHabits) index(id string) int {
	for i, h := range f.list {
		if h.ID == id {
			return i
		}
	}
	return -1
}

/* ---------------- GET /habits ---------------- */

func TestListHabits(t *testing.T) {
	env := setUpTestServer(t)

	resp := env.do(t, http.MethodGet, "/habits", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list []habits.Habit
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, "read", list[0].ID)
}

func TestRefreshHabits(t *testing.T) {
	env := setUpTestServer(t)

	resp := env.do(t, http.MethodPost, "/habits/refresh", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, env.habits.loadCount())

	env.habits.failWith(&remote.StatusError{Method: http.MethodGet, Path: "/habits", StatusCode: http.StatusServiceUnavailable}, nil)
	resp = env.do(t, http.MethodPost, "/habits/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

/* ---------------- POST /habits/{id}/checkins ---------------- */

func TestCheckInHabit(t *testing.T) {
	env := setUpTestServer(t)

	resp := env.do(t, http.MethodPost, "/habits/read/checkins", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 2, env.habits.List()[0].Count)
}

func TestCheckInHabit_Errors(t *testing.T) {
	env := setUpTestServer(t)

	resp := env.do(t, http.MethodPost, "/habits/swim/checkins", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/habits/read/checkins", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	env.habits.failWith(nil, &remote.StatusError{Method: http.MethodPost, Path: "/habits/read/checkins", StatusCode: http.StatusBadRequest})
	resp = env.do(t, http.MethodPost, "/habits/read/checkins", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, 1, env.habits.List()[0].Count)
}

/* ---------------- PUT /habits/{id}, PUT /habits ---------------- */

func TestUpdateHabit(t *testing.T) {
	env := setUpTestServer(t)

	resp := env.do(t, http.MethodPut, "/habits/run", []byte(`{"name":"Run far","count":5}`))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	got := env.habits.List()[1]
	assert.Equal(t, "run", got.ID)
	assert.Equal(t, "Run far", got.Name)

	resp = env.do(t, http.MethodPut, "/habits/run", []byte(`{`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateHabits(t *testing.T) {
	env := setUpTestServer(t)

	body := []byte(`[{"id":"read","name":"Read","count":10},{"id":"run","name":"Run","count":20}]`)
	resp := env.do(t, http.MethodPut, "/habits", body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list []habits.Habit
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, 10, list[0].Count)
	assert.Equal(t, 20, list[1].Count)
}
