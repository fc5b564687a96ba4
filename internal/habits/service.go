package habits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"habit-sync/internal/logs"
	"habit-sync/internal/manager"
	"habit-sync/internal/queue"
	"habit-sync/internal/remote"
	"habit-sync/internal/retry"
)

// Config tunes the habit list manager.
type Config struct {
	CacheTTL        time.Duration
	Retry           retry.Options
	AutoRefresh     bool
	RefreshInterval time.Duration
}

// Service keeps the habit list in sync with the backend. Reads go through a
// cached Manager; writes are applied optimistically and either sent at once
// or queued for replay when offline.
type Service struct {
	client *remote.Client
	queue  *queue.Queue
	habits *manager.Manager[[]Habit]
	online manager.OnlineChecker
	retry  retry.Options
	logger *logs.Logger
	now    func() time.Time
}

// NewService builds the service and registers its queue handlers on q.
func NewService(client *remote.Client, q *queue.Queue, deps manager.Deps, cfg Config) (*Service, error) {
	s := &Service{
		client: client,
		queue:  q,
		online: deps.Online,
		retry:  cfg.Retry,
		logger: deps.Logger.With("habits"),
		now:    time.Now,
	}
	if s.online == nil {
		s.online = alwaysOnline{}
	}
	s.retry.Metrics = deps.Metrics

	m, err := manager.New(manager.Options[[]Habit]{
		Name:            "habits",
		Fetch:           s.fetch,
		CacheKey:        CacheKey,
		CacheTTL:        cfg.CacheTTL,
		Clone:           func(l []Habit) []Habit { return slices.Clone(l) },
		Retry:           cfg.Retry,
		AutoRefresh:     cfg.AutoRefresh,
		RefreshInterval: cfg.RefreshInterval,
	}, deps)
	if err != nil {
		return nil, err
	}
	s.habits = m

	q.Register(KindCheckIn, s.handleCheckIn)
	q.Register(KindUpdate, s.handleUpdate)
	return s, nil
}

// Manager exposes the underlying state holder for subscriptions.
func (s *Service) Manager() *manager.Manager[[]Habit] { return s.habits }

// List returns the current habit list, possibly empty before the first load.
func (s *Service) List() []Habit {
	return slices.Clone(s.habits.State().Data)
}

// Load reads the list from cache, fetching it when missing or forced.
func (s *Service) Load(ctx context.Context, force bool) error {
	return s.habits.Load(ctx, force)
}

// Run drives auto refresh until ctx is done.
func (s *Service) Run(ctx context.Context) { s.habits.Run(ctx) }

// CheckIn records one completion of the habit. The count is bumped in local
// state immediately; offline check-ins are queued and replayed later, online
// ones are sent now and rolled back if the backend rejects them.
func (s *Service) CheckIn(ctx context.Context, id string) error {
	if indexOf(s.habits.State().Data, id) < 0 {
		return fmt.Errorf("check in %q: %w", id, ErrHabitNotFound)
	}

	at := s.now().UTC()
	rollback := s.habits.OptimisticUpdate(func(list []Habit) []Habit {
		if i := indexOf(list, id); i >= 0 {
			list[i].Count++
			list[i].LastCheckedIn = &at
		}
		return list
	})

	payload := CheckInPayload{HabitID: id, At: at}
	if !s.online.IsOnline() {
		s.enqueue(ctx, KindCheckIn, payload, id)
		return nil
	}

	err := s.send(ctx, "checkin", func(ctx context.Context) error { return s.postCheckIn(ctx, payload) })
	if err == nil {
		return nil
	}
	if s.unreachable(ctx, err) {
		s.enqueue(ctx, KindCheckIn, payload, id)
		return nil
	}
	rollback()
	return err
}

// Update replaces one habit. It follows the same optimistic and offline
// rules as CheckIn.
func (s *Service) Update(ctx context.Context, h Habit) error {
	if indexOf(s.habits.State().Data, h.ID) < 0 {
		return fmt.Errorf("update %q: %w", h.ID, ErrHabitNotFound)
	}

	rollback := s.habits.OptimisticUpdate(func(list []Habit) []Habit {
		if i := indexOf(list, h.ID); i >= 0 {
			list[i] = h
		}
		return list
	})

	if !s.online.IsOnline() {
		s.enqueue(ctx, KindUpdate, h, h.ID)
		return nil
	}

	err := s.send(ctx, "update", func(ctx context.Context) error { return s.putHabit(ctx, h) })
	if err == nil {
		return nil
	}
	if s.unreachable(ctx, err) {
		s.enqueue(ctx, KindUpdate, h, h.ID)
		return nil
	}
	rollback()
	return err
}

// unreachable reports whether err means the backend never answered. Such a
// write keeps its optimistic state and is queued like an offline one; a
// rejection from the backend is rolled back instead.
func (s *Service) unreachable(ctx context.Context, err error) bool {
	var netErr *remote.NetworkError
	return errors.As(err, &netErr) && ctx.Err() == nil
}

func (s *Service) enqueue(ctx context.Context, kind string, payload any, habitID string) {
	if _, err := s.queue.Enqueue(ctx, kind, payload); err != nil {
		s.logger.WarnErr("habit write queued but not persisted", err, map[string]string{"habit": habitID, "kind": kind})
	}
}

// UpdateMany replaces several habits as one unit. Either every write lands
// or the ones that did are reverted on the backend and local state goes back
// to how it was.
func (s *Service) UpdateMany(ctx context.Context, updates []Habit) error {
	before := make(map[string]Habit, len(updates))
	for _, h := range s.habits.State().Data {
		before[h.ID] = h
	}
	for _, h := range updates {
		if _, ok := before[h.ID]; !ok {
			return fmt.Errorf("update %q: %w", h.ID, ErrHabitNotFound)
		}
	}

	apply := func(list []Habit, h Habit) []Habit {
		if i := indexOf(list, h.ID); i >= 0 {
			list[i] = h
		}
		return list
	}

	commit := func(ctx context.Context, items []Habit) error {
		steps := make([]queue.BatchAction, 0, len(items))
		for _, h := range items {
			prev := before[h.ID]
			steps = append(steps, queue.BatchAction{
				Name:     "update " + h.ID,
				Execute:  func(ctx context.Context) error { return s.putHabit(ctx, h) },
				Rollback: func(ctx context.Context) error { return s.putHabit(ctx, prev) },
			})
		}
		return s.queue.SyncBatch(ctx, steps)
	}

	return manager.BatchUpdate(ctx, s.habits, updates, apply, commit)
}

func (s *Service) send(ctx context.Context, op string, fn func(context.Context) error) error {
	opts := s.retry
	opts.Name = "habits." + op
	return retry.Run(ctx, opts, fn)
}

func (s *Service) fetch(ctx context.Context) ([]Habit, error) {
	var list []Habit
	if err := s.client.GetJSON(ctx, "/habits", &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) postCheckIn(ctx context.Context, p CheckInPayload) error {
	path := "/habits/" + url.PathEscape(p.HabitID) + "/checkins"
	return s.client.PostJSON(ctx, path, map[string]time.Time{"at": p.At}, nil)
}

func (s *Service) putHabit(ctx context.Context, h Habit) error {
	return s.client.PutJSON(ctx, "/habits/"+url.PathEscape(h.ID), h, nil)
}

func (s *Service) handleCheckIn(ctx context.Context, raw json.RawMessage) error {
	var p CheckInPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decode check-in: %w", err)
	}
	return s.postCheckIn(ctx, p)
}

func (s *Service) handleUpdate(ctx context.Context, raw json.RawMessage) error {
	var h Habit
	if err := json.Unmarshal(raw, &h); err != nil {
		return fmt.Errorf("decode habit: %w", err)
	}
	return s.putHabit(ctx, h)
}

type alwaysOnline struct{}

func (alwaysOnline) IsOnline() bool { return true }
