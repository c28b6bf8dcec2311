package tasks

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/quicktask/quicktask-api/internal/storage"
)

func newTempDB(t *testing.T) *SQLiteRepo {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLiteRepo(db)
	if err := repo.ApplyMigrations(context.Background()); err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	return repo
}

func mustCreate(t *testing.T, repo Repository, task Task) Task {
	t.Helper()
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if task.Status == "" {
		task.Status = StatusTodo
	}
	created, err := repo.Create(context.Background(), task)
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	return created
}

func TestSQLiteRepo_CreateDefaultsAndGet(t *testing.T) {
	repo := newTempDB(t)
	ctx := context.Background()

	created := mustCreate(t, repo, Task{UserID: "u1", Title: "Write spec"})
	if created.ID == "" || created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("bad created task: %+v", created)
	}
	if created.CompletedAt != nil {
		t.Fatalf("new Todo task should have nil completedAt")
	}

	got, err := repo.Get(ctx, "u1", created.ID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.Title != "Write spec" || got.Status != StatusTodo || got.Priority != PriorityMedium {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestSQLiteRepo_OwnershipScoping(t *testing.T) {
	repo := newTempDB(t)
	ctx := context.Background()

	mine := mustCreate(t, repo, Task{UserID: "alice", Title: "Alice's task"})

	if _, err := repo.Get(ctx, "bob", mine.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign get: expected ErrNotFound, got %v", err)
	}
	title := "hijacked"
	if _, err := repo.Update(ctx, "bob", mine.ID, UpdateInput{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign update: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "bob", mine.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete: expected ErrNotFound, got %v", err)
	}

	tasks, total, err := repo.List(ctx, "bob", ParseListQuery(url.Values{}))
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if total != 0 || len(tasks) != 0 {
		t.Fatalf("bob should see no tasks, got %d", total)
	}

	// the owner still sees it untouched
	got, err := repo.Get(ctx, "alice", mine.ID)
	if err != nil || got.Title != "Alice's task" {
		t.Fatalf("owner get failed: %v %+v", err, got)
	}
}

func TestSQLiteRepo_CompletedAtDerivation(t *testing.T) {
	repo := newTempDB(t)
	ctx := context.Background()

	created := mustCreate(t, repo, Task{UserID: "u1", Title: "derive me"})

	done := StatusCompleted
	updated, err := repo.Update(ctx, "u1", created.ID, UpdateInput{Status: &done})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if updated.CompletedAt == nil {
		t.Fatalf("expected completedAt to be stamped")
	}
	stamp := *updated.CompletedAt

	// completing again keeps the original stamp
	again, err := repo.Update(ctx, "u1", created.ID, UpdateInput{Status: &done})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if again.CompletedAt == nil || !again.CompletedAt.Equal(stamp) {
		t.Fatalf("re-completing must not move completedAt: %v vs %v", again.CompletedAt, stamp)
	}

	// moving away clears it
	todo := StatusTodo
	back, err := repo.Update(ctx, "u1", created.ID, UpdateInput{Status: &todo})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if back.CompletedAt != nil {
		t.Fatalf("expected completedAt cleared, got %v", back.CompletedAt)
	}

	// clearing is idempotent
	back2, err := repo.Update(ctx, "u1", created.ID, UpdateInput{Status: &todo})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if back2.CompletedAt != nil {
		t.Fatalf("expected completedAt to stay nil")
	}
}

func TestSQLiteRepo_CreateCompletedStampsImmediately(t *testing.T) {
	repo := newTempDB(t)

	created := mustCreate(t, repo, Task{UserID: "u1", Title: "already done", Status: StatusCompleted})
	if created.CompletedAt == nil {
		t.Fatalf("task created as Completed must carry completedAt")
	}
}

func TestSQLiteRepo_ListFiltersAndSearch(t *testing.T) {
	repo := newTempDB(t)
	ctx := context.Background()

	mustCreate(t, repo, Task{UserID: "u1", Title: "Fix bug in authentication", Priority: PriorityHigh, Status: StatusInProgress})
	mustCreate(t, repo, Task{UserID: "u1", Title: "Write unit tests", Description: "cover the auth package", Priority: PriorityHigh})
	mustCreate(t, repo, Task{UserID: "u1", Title: "Water plants", Priority: PriorityLow})
	mustCreate(t, repo, Task{UserID: "u2", Title: "Fix bug in authorization"})

	tasks, total, err := repo.List(ctx, "u1", ParseListQuery(url.Values{"search": {"AUTH"}}))
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if total != 2 || len(tasks) != 2 {
		t.Fatalf("search=AUTH: expected 2 matches (title and description, case-insensitive), got %d", total)
	}

	tasks, total, err = repo.List(ctx, "u1", ParseListQuery(url.Values{"status": {"In Progress"}}))
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if total != 1 || tasks[0].Title != "Fix bug in authentication" {
		t.Fatalf("status filter: unexpected result %d %+v", total, tasks)
	}

	_, total, err = repo.List(ctx, "u1", ParseListQuery(url.Values{"priority": {"High"}, "status": {"Todo"}}))
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if total != 1 {
		t.Fatalf("combined filters: expected 1, got %d", total)
	}

	// an unknown enum value matches nothing rather than erroring
	_, total, err = repo.List(ctx, "u1", ParseListQuery(url.Values{"status": {"Bogus"}}))
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if total != 0 {
		t.Fatalf("bogus status: expected 0, got %d", total)
	}
}

func TestSQLiteRepo_ListPaginationAndSort(t *testing.T) {
	repo := newTempDB(t)
	ctx := context.Background()

	titles := []string{"a", "b", "c", "d", "e"}
	for _, title := range titles {
		mustCreate(t, repo, Task{UserID: "u1", Title: title})
		// spread createdAt so the default sort is deterministic
		time.Sleep(2 * time.Millisecond)
	}

	q := ParseListQuery(url.Values{"limit": {"2"}, "page": {"1"}, "sort": {"title"}, "order": {"asc"}})
	tasks, total, err := repo.List(ctx, "u1", q)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(tasks) != 2 || tasks[0].Title != "a" || tasks[1].Title != "b" {
		t.Fatalf("page 1 asc: unexpected %+v", tasks)
	}
	if meta := NewPageMeta(q, total); meta.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", meta.TotalPages)
	}

	// past the last page: empty list, unchanged total
	q = ParseListQuery(url.Values{"limit": {"2"}, "page": {"9"}})
	tasks, total, err = repo.List(ctx, "u1", q)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(tasks) != 0 || total != 5 {
		t.Fatalf("beyond last page: expected empty/5, got %d/%d", len(tasks), total)
	}

	// default order is newest first
	tasks, _, err = repo.List(ctx, "u1", ParseListQuery(url.Values{}))
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if tasks[0].Title != "e" {
		t.Fatalf("expected newest first, got %q", tasks[0].Title)
	}
}

func TestSQLiteRepo_DeleteThenGet(t *testing.T) {
	repo := newTempDB(t)
	ctx := context.Background()

	created := mustCreate(t, repo, Task{UserID: "u1", Title: "ephemeral"})
	if err := repo.Delete(ctx, "u1", created.ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if _, err := repo.Get(ctx, "u1", created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, "u1", created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: expected ErrNotFound, got %v", err)
	}
}
