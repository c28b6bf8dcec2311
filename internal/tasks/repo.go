package tasks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound covers both a missing id and an id owned by another user;
// callers cannot tell the two apart.
var ErrNotFound = errors.New("task not found")

// UpdateInput is a partial patch. Nil fields are left untouched. There is no
// owner field: ownership is immutable and never accepted from clients.
type UpdateInput struct {
	Title       *string
	Description *string
	Priority    *Priority
	Status      *Status
	DueDate     *time.Time
}

type Repository interface {
	Create(ctx context.Context, t Task) (Task, error)
	List(ctx context.Context, userID string, q ListQuery) ([]Task, int, error)
	Get(ctx context.Context, userID, id string) (Task, error)
	Update(ctx context.Context, userID, id string, in UpdateInput) (Task, error)
	Delete(ctx context.Context, userID, id string) error
}

// applyPatch mutates t with the set fields of in and derives CompletedAt from
// status transitions: entering Completed stamps it (once), leaving Completed
// clears it. Shared by every Repository implementation.
func applyPatch(t *Task, in UpdateInput, now time.Time) {
	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.DueDate != nil {
		d := *in.DueDate
		t.DueDate = &d
	}

	if t.Status == StatusCompleted {
		if t.CompletedAt == nil {
			stamp := now
			t.CompletedAt = &stamp
		}
	} else {
		t.CompletedAt = nil
	}
	t.UpdatedAt = now
}

// InMemoryRepo is a map-backed Repository used by handler tests.
type InMemoryRepo struct {
	mu    sync.Mutex
	store map[string]Task
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{store: make(map[string]Task)}
}

func (r *InMemoryRepo) Create(ctx context.Context, t Task) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == StatusCompleted {
		t.CompletedAt = &now
	}
	r.store[t.ID] = t
	return t, nil
}

func (r *InMemoryRepo) List(ctx context.Context, userID string, q ListQuery) ([]Task, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]Task, 0)
	for _, t := range r.store {
		if t.UserID != userID {
			continue
		}
		if q.Status != "" && string(t.Status) != q.Status {
			continue
		}
		if q.Priority != "" && string(t.Priority) != q.Priority {
			continue
		}
		if q.Search != "" {
			needle := strings.ToLower(q.Search)
			if !strings.Contains(strings.ToLower(t.Title), needle) &&
				!strings.Contains(strings.ToLower(t.Description), needle) {
				continue
			}
		}
		matched = append(matched, t)
	}

	sortTasks(matched, q)
	total := len(matched)

	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func sortTasks(ts []Task, q ListQuery) {
	asc := q.Order == "asc"
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		var less bool
		switch q.SortColumn() {
		case "title":
			less = a.Title < b.Title
		case "priority":
			less = a.Priority < b.Priority
		case "status":
			less = a.Status < b.Status
		case "due_date":
			less = timePtrBefore(a.DueDate, b.DueDate)
		case "completed_at":
			less = timePtrBefore(a.CompletedAt, b.CompletedAt)
		case "updated_at":
			less = a.UpdatedAt.Before(b.UpdatedAt)
		default:
			less = a.CreatedAt.Before(b.CreatedAt)
		}
		if asc {
			return less
		}
		return !less
	})
}

func timePtrBefore(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}

func (r *InMemoryRepo) Get(ctx context.Context, userID, id string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.store[id]
	if !ok || t.UserID != userID {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (r *InMemoryRepo) Update(ctx context.Context, userID, id string, in UpdateInput) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.store[id]
	if !ok || t.UserID != userID {
		return Task{}, ErrNotFound
	}
	applyPatch(&t, in, time.Now().UTC())
	r.store[id] = t
	return t, nil
}

func (r *InMemoryRepo) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.store[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(r.store, id)
	return nil
}
