package task

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	priority           INTEGER NOT NULL DEFAULT 1,
	deadline           DATETIME,
	status             TEXT NOT NULL DEFAULT 'pending',
	created_at         DATETIME NOT NULL,
	completed_at       DATETIME,
	estimated_duration INTEGER NOT NULL DEFAULT 60
);

CREATE TABLE IF NOT EXISTS task_dependencies (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id            INTEGER NOT NULL REFERENCES tasks(id),
	depends_on_task_id INTEGER NOT NULL REFERENCES tasks(id)
);

CREATE TABLE IF NOT EXISTS notifications (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	message TEXT NOT NULL,
	sent_at DATETIME NOT NULL,
	read    INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore persists tasks, dependency edges, and notifications in a
// SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and
// ensures the schema exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// _time_format=sqlite stores time.Time values in a form the SQLite
	// date functions can parse (the analytics queries depend on it).
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create persists a new pending task and its dependency edges in one
// transaction, and sets the task's ID, Status, and CreatedAt.
func (s *SQLiteStore) Create(t *Task, dependsOn []int64) (int64, error) {
	t.Status = StatusPending
	t.CreatedAt = time.Now().UTC()
	if t.EstimatedDuration <= 0 {
		t.EstimatedDuration = 60
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`
		INSERT INTO tasks (title, description, priority, deadline, status, created_at, estimated_duration)
		VALUES (?,?,?,?,?,?,?)`,
		t.Title, t.Description, t.Priority, nullTime(t.Deadline),
		string(t.Status), t.CreatedAt, t.EstimatedDuration,
	)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	t.ID = id

	for _, dep := range dependsOn {
		if _, err := tx.Exec(
			`INSERT INTO task_dependencies (task_id, depends_on_task_id) VALUES (?,?)`,
			id, dep,
		); err != nil {
			return 0, fmt.Errorf("insert dependency %d->%d: %w", id, dep, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(id int64) (*Task, error) {
	row := s.db.QueryRow(`SELECT * FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t, err
}

// List returns tasks matching the filter, highest priority first.
func (s *SQLiteStore) List(filter Filter) ([]*Task, error) {
	q := strings.Builder{}
	q.WriteString("SELECT * FROM tasks WHERE 1=1")
	args := []any{}

	if filter.Status != nil {
		q.WriteString(" AND status=?")
		args = append(args, string(*filter.Status))
	}
	q.WriteString(" ORDER BY priority DESC, id ASC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			q.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	rows, err := s.db.Query(q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListPending returns every pending task.
func (s *SQLiteStore) ListPending() ([]*Task, error) {
	st := StatusPending
	return s.List(Filter{Status: &st})
}

// ListEdges returns every recorded dependency edge.
func (s *SQLiteStore) ListEdges() ([]Edge, error) {
	rows, err := s.db.Query(`SELECT task_id, depends_on_task_id FROM task_dependencies`)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.TaskID, &e.DependsOnID); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Complete marks a task completed and stamps completed_at. Completing an
// already-completed task is a no-op that keeps the original timestamp.
func (s *SQLiteStore) Complete(id int64) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET status=?, completed_at=? WHERE id=? AND status=?`,
		string(StatusCompleted), time.Now().UTC(), id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish "already completed" from "missing".
		if _, err := s.Get(id); err != nil {
			return err
		}
	}
	return nil
}

// AppendNotification adds an unread entry to the notification log.
func (s *SQLiteStore) AppendNotification(taskID int64, message string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO notifications (task_id, message, sent_at, read) VALUES (?,?,?,0)`,
		taskID, message, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("append notification: %w", err)
	}
	return res.LastInsertId()
}

// Notifications returns log entries matching the filter, newest first.
func (s *SQLiteStore) Notifications(filter NotificationFilter) ([]*Notification, error) {
	q := strings.Builder{}
	q.WriteString("SELECT id, task_id, message, sent_at, read FROM notifications WHERE 1=1")
	args := []any{}

	if filter.TaskID != 0 {
		q.WriteString(" AND task_id=?")
		args = append(args, filter.TaskID)
	}
	if filter.UnreadOnly {
		q.WriteString(" AND read=0")
	}
	q.WriteString(" ORDER BY id DESC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}

	rows, err := s.db.Query(q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifs []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.TaskID, &n.Message, &n.SentAt, &n.Read); err != nil {
			return nil, err
		}
		notifs = append(notifs, &n)
	}
	return notifs, rows.Err()
}

// MarkNotificationRead flips the read flag on one log entry.
func (s *SQLiteStore) MarkNotificationRead(id int64) error {
	res, err := s.db.Exec(`UPDATE notifications SET read=1 WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return nil
}

// Analytics returns raw status/priority/completion counts. Daily
// completions cover the last 7 days.
func (s *SQLiteStore) Analytics() (*Analytics, error) {
	a := &Analytics{
		StatusCounts:   make(map[string]int),
		PriorityCounts: make(map[int]int),
	}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, err
		}
		a.StatusCounts[status] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`SELECT priority, COUNT(*) FROM tasks GROUP BY priority`)
	if err != nil {
		return nil, fmt.Errorf("priority counts: %w", err)
	}
	for rows.Next() {
		var priority, n int
		if err := rows.Scan(&priority, &n); err != nil {
			rows.Close()
			return nil, err
		}
		a.PriorityCounts[priority] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`
		SELECT DATE(completed_at) AS date, COUNT(*) AS completed
		FROM tasks
		WHERE completed_at IS NOT NULL
		AND DATE(completed_at) >= DATE('now', '-7 days')
		GROUP BY DATE(completed_at)
		ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("daily completions: %w", err)
	}
	for rows.Next() {
		var d DailyCompleted
		if err := rows.Scan(&d.Date, &d.Completed); err != nil {
			rows.Close()
			return nil, err
		}
		a.DailyCompletions = append(a.DailyCompletions, d)
	}
	rows.Close()
	return a, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var status string
	var deadline, completedAt sql.NullTime

	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &t.Priority, &deadline,
		&status, &t.CreatedAt, &completedAt, &t.EstimatedDuration,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	if deadline.Valid {
		t.Deadline = &deadline.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
