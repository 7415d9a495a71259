package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store used by tests and as a fallback when no
// data directory is configured.
type MemStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewMemStore() *MemStore {
	return &MemStore{tasks: make(map[string]Task)}
}

func (s *MemStore) Create(_ context.Context, t Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	s.tasks[t.ID] = cloneTask(t)
	return cloneTask(t), nil
}

func (s *MemStore) Get(_ context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok || t.DeletedAt != nil {
		return Task{}, ErrNotFound
	}
	return cloneTask(t), nil
}

func (s *MemStore) Update(_ context.Context, id string, mutate func(*Task)) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.DeletedAt != nil {
		return Task{}, ErrNotFound
	}
	mutate(&t)
	t.UpdatedAt = time.Now().UTC()
	s.tasks[id] = cloneTask(t)
	return cloneTask(t), nil
}

func (s *MemStore) Delete(_ context.Context, id string) (Task, error) {
	now := time.Now().UTC()
	return s.Update(context.Background(), id, func(t *Task) {
		t.DeletedAt = &now
	})
}

func (s *MemStore) Query(_ context.Context, userID string, f Filter) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, t := range s.tasks {
		if t.UserID != userID || !f.matches(t) {
			continue
		}
		out = append(out, cloneTask(t))
	}
	sortTasks(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemStore) BulkMutate(_ context.Context, ids []string, mutate func(*Task)) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Verify every id first so the batch applies all-or-nothing.
	for _, id := range ids {
		t, ok := s.tasks[id]
		if !ok || t.DeletedAt != nil {
			return nil, ErrNotFound
		}
	}
	now := time.Now().UTC()
	out := make([]Task, 0, len(ids))
	for _, id := range ids {
		t := s.tasks[id]
		mutate(&t)
		t.UpdatedAt = now
		s.tasks[id] = cloneTask(t)
		out = append(out, cloneTask(t))
	}
	return out, nil
}

// sortTasks orders by due date (unset last), then priority, matching the
// store's default listing order.
func sortTasks(ts []Task) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		switch {
		case a.DueAt == nil && b.DueAt == nil:
			return PriorityRank(a.Priority) < PriorityRank(b.Priority)
		case a.DueAt == nil:
			return false
		case b.DueAt == nil:
			return true
		case !a.DueAt.Equal(*b.DueAt):
			return a.DueAt.Before(*b.DueAt)
		default:
			return PriorityRank(a.Priority) < PriorityRank(b.Priority)
		}
	})
}
