package task

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/khalidAdell/quick-task/domain/task"
)

// MemoryStore provides in-memory task storage.
type MemoryStore struct {
	tasks map[string]*domain.Task
	mu    sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*domain.Task),
	}
}

// Get returns a copy of the stored task.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, found := s.tasks[id]
	if !found {
		return nil, errTaskNotFound(id)
	}
	return t.Clone(), nil
}

// Create stores a new task.
func (s *MemoryStore) Create(_ context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Update replaces the task if its stored version is expectedVersion.
func (s *MemoryStore) Update(_ context.Context, t *domain.Task, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.tasks[t.ID]
	if !found {
		return errTaskNotFound(t.ID)
	}
	if current.Version != expectedVersion {
		return ErrStaleVersion
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Delete removes the task if its stored version is expectedVersion.
func (s *MemoryStore) Delete(_ context.Context, id string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.tasks[id]
	if !found {
		return errTaskNotFound(id)
	}
	if current.Version != expectedVersion {
		return ErrStaleVersion
	}
	delete(s.tasks, id)
	return nil
}

// Query returns the page of tasks matching q and the total match count.
func (s *MemoryStore) Query(_ context.Context, q domain.Query) ([]*domain.Task, int, error) {
	s.mu.RLock()
	matched := make([]*domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if q.Matches(t) {
			matched = append(matched, t.Clone())
		}
	}
	s.mu.RUnlock()

	sortTasks(matched, q.Sort)

	total := len(matched)
	if q.Offset >= total {
		return []*domain.Task{}, total, nil
	}
	end := total
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return matched[q.Offset:end], total, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// sortTasks orders tasks the way the SQL stores do, with id as the final tie breaker.
func sortTasks(tasks []*domain.Task, order domain.SortOrder) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch order {
		case domain.SortPriceAsc:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		case domain.SortPriceDesc:
			if a.Price != b.Price {
				return a.Price > b.Price
			}
		case domain.SortDeadline:
			if !a.Deadline.Equal(b.Deadline) {
				return a.Deadline.Before(b.Deadline)
			}
		default:
			if !a.PostedAt.Equal(b.PostedAt) {
				return a.PostedAt.After(b.PostedAt)
			}
		}
		return a.ID < b.ID
	})
}
