package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(db *sql.DB) *SQLiteRepo {
	return &SQLiteRepo{db: db}
}

// ApplyMigrations ensures schema exists. The compound indexes mirror the
// listing filters: every query leads with user_id.
func (r *SQLiteRepo) ApplyMigrations(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT 'Medium',
	status TEXT NOT NULL DEFAULT 'Todo',
	due_date TEXT,
	completed_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status);
CREATE INDEX IF NOT EXISTS idx_tasks_user_priority ON tasks(user_id, priority);
CREATE INDEX IF NOT EXISTS idx_tasks_user_due ON tasks(user_id, due_date);
	`)
	return err
}

const taskColumns = `id, user_id, title, description, priority, status, due_date, completed_at, created_at, updated_at`

func (r *SQLiteRepo) Create(ctx context.Context, t Task) (Task, error) {
	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == StatusCompleted && t.CompletedAt == nil {
		t.CompletedAt = &now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.Title, t.Description, string(t.Priority), string(t.Status),
		encodeTimePtr(t.DueDate), encodeTimePtr(t.CompletedAt),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// List runs the filter/sort/page window plus a matching count, both behind
// the unconditional user_id predicate.
func (r *SQLiteRepo) List(ctx context.Context, userID string, q ListQuery) ([]Task, int, error) {
	where, args := buildWhere(userID, q)

	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE %s
		ORDER BY %s %s, id %s
		LIMIT ? OFFSET ?
	`, taskColumns, where, q.SortColumn(), q.OrderDir(), q.OrderDir())

	rows, err := r.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Task, 0, q.Limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// buildWhere injects the ownership predicate first; the optional filters AND
// onto it. Search matches a lowercase substring of title or description, with
// LIKE metacharacters escaped.
func buildWhere(userID string, q ListQuery) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}

	if q.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, q.Status)
	}
	if q.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, q.Priority)
	}
	if q.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		clauses = append(clauses, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	return strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (r *SQLiteRepo) Get(ctx context.Context, userID, id string) (Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?
	`, id, userID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

// Update applies the patch and the CompletedAt derivation inside one
// transaction, matched by id AND user_id.
func (r *SQLiteRepo) Update(ctx context.Context, userID, id string, in UpdateInput) (Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?
	`, id, userID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, err
	}

	applyPatch(&t, in, time.Now().UTC())

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, status = ?,
		    due_date = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, t.Title, t.Description, string(t.Priority), string(t.Status),
		encodeTimePtr(t.DueDate), encodeTimePtr(t.CompletedAt),
		t.UpdatedAt.Format(time.RFC3339Nano), id, userID)
	if err != nil {
		return Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (r *SQLiteRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var t Task
	var priority, status, created, updated string
	var due, completed sql.NullString
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &priority, &status,
		&due, &completed, &created, &updated)
	if err != nil {
		return Task{}, err
	}
	t.Priority = Priority(priority)
	t.Status = Status(status)
	t.DueDate = decodeTimePtr(due)
	t.CompletedAt = decodeTimePtr(completed)
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		t.UpdatedAt = ts
	}
	return t, nil
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &ts
}
