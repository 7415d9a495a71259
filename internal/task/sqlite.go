package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// SQLiteStore persists tasks in a single SQLite database under dataDir.
type SQLiteStore struct {
	conn *sql.DB
}

func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dsn := filepath.Join(dataDir, "tasks.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	s := &SQLiteStore{conn: conn}
	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		due_at TEXT,
		tags TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		completed_at TEXT,
		deleted_at TEXT
	)`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_tasks_user_live ON tasks(user_id, deleted_at)`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_meta (key, value) VALUES ('version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, fmt.Sprint(schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.conn.Close() }

func (s *SQLiteStore) Create(ctx context.Context, t Task) (Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.UpdatedAt = t.CreatedAt
	if err := s.insert(ctx, s.conn, t); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return t, nil
}

func (s *SQLiteStore) insert(ctx context.Context, q execer, t Task) error {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO tasks
		(id, user_id, title, description, status, priority, due_at, tags, created_at, updated_at, completed_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, t.Description, string(t.Status), string(t.Priority),
		encodeTime(t.DueAt), string(tags), t.CreatedAt.Format(time.RFC3339Nano),
		t.UpdatedAt.Format(time.RFC3339Nano), encodeTime(t.CompletedAt), encodeTime(t.DeletedAt))
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const taskColumns = `id, user_id, title, description, status, priority, due_at, tags, created_at, updated_at, completed_at, deleted_at`

func (s *SQLiteStore) Get(ctx context.Context, id string) (Task, error) {
	return getTask(ctx, s.conn, id)
}

func getTask(ctx context.Context, q querier, id string) (Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND deleted_at IS NULL`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return t, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, mutate func(*Task)) (Task, error) {
	var out Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		mutate(&t)
		t.UpdatedAt = time.Now().UTC()
		if err := writeBack(ctx, tx, t); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = t
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (Task, error) {
	now := time.Now().UTC()
	return s.Update(ctx, id, func(t *Task) {
		t.DeletedAt = &now
	})
}

func (s *SQLiteStore) BulkMutate(ctx context.Context, ids []string, mutate func(*Task)) ([]Task, error) {
	var out []Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, id := range ids {
			t, err := getTask(ctx, tx, id)
			if err != nil {
				return err
			}
			mutate(&t)
			t.UpdatedAt = now
			if err := writeBack(ctx, tx, t); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Query(ctx context.Context, userID string, f Filter) ([]Task, error) {
	var (
		where = []string{"user_id = ?", "deleted_at IS NULL"}
		args  = []any{userID}
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(f.Priority))
	}
	if !f.DueFrom.IsZero() {
		where = append(where, "due_at IS NOT NULL AND due_at >= ?")
		args = append(args, f.DueFrom.UTC().Format(time.RFC3339Nano))
	}
	if !f.DueTo.IsZero() {
		where = append(where, "due_at IS NOT NULL AND due_at < ?")
		args = append(args, f.DueTo.UTC().Format(time.RFC3339Nano))
	}
	if f.Search != "" {
		where = append(where, "(lower(title) LIKE ? OR lower(description) LIKE ?)")
		needle := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, needle, needle)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY due_at IS NULL, due_at ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func writeBack(ctx context.Context, tx *sql.Tx, t Task) error {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE tasks SET
		title = ?, description = ?, status = ?, priority = ?, due_at = ?, tags = ?,
		updated_at = ?, completed_at = ?, deleted_at = ?
		WHERE id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), encodeTime(t.DueAt),
		string(tags), t.UpdatedAt.Format(time.RFC3339Nano), encodeTime(t.CompletedAt),
		encodeTime(t.DeletedAt), t.ID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var (
		t                              Task
		status, priority, tags         string
		createdAt, updatedAt           string
		dueAt, completedAt, deletedAt  sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &status, &priority,
		&dueAt, &tags, &createdAt, &updatedAt, &completedAt, &deletedAt); err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	t.Priority = Priority(priority)
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return Task{}, err
	}
	var err error
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Task{}, err
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Task{}, err
	}
	if t.DueAt, err = decodeTime(dueAt); err != nil {
		return Task{}, err
	}
	if t.CompletedAt, err = decodeTime(completedAt); err != nil {
		return Task{}, err
	}
	if t.DeletedAt, err = decodeTime(deletedAt); err != nil {
		return Task{}, err
	}
	return t, nil
}

func encodeTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
