// Package task defines the task model and persistence for scheduled work items.
package task

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of a task. A task is created
// pending and transitions once, irreversibly, to completed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Task is a unit of pending work with a priority, an optional deadline,
// and prerequisite relationships recorded as dependency edges.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"` // positive, higher = more urgent
	Deadline    *time.Time `json:"deadline,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// EstimatedDuration is the expected working time in minutes.
	EstimatedDuration int `json:"estimated_duration"`
}

// Edge is a prerequisite relationship: TaskID may not be considered
// ready until DependsOnID is completed.
type Edge struct {
	TaskID      int64 `json:"task_id"`
	DependsOnID int64 `json:"depends_on_task_id"`
}

// Notification is one entry in the append-only reminder log.
type Notification struct {
	ID      int64     `json:"id"`
	TaskID  int64     `json:"task_id"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
	Read    bool      `json:"read"`
}

// ErrNotFound is returned by Get and the mutating operations when no
// row matches the given id. Callers that treat a missing task as a
// no-op check it with errors.Is.
var ErrNotFound = errors.New("not found")

// Filter controls which tasks are returned by List.
type Filter struct {
	Status *Status `json:"status,omitempty"`
	Limit  int     `json:"limit,omitempty"`
	Offset int     `json:"offset,omitempty"`
}

// NotificationFilter controls which notifications are returned.
type NotificationFilter struct {
	TaskID     int64 `json:"task_id,omitempty"` // 0 = all tasks
	UnreadOnly bool  `json:"unread_only,omitempty"`
	Limit      int   `json:"limit,omitempty"`
}

// Analytics holds raw productivity counts for an external presentation
// layer. No chart shaping happens here.
type Analytics struct {
	StatusCounts     map[string]int   `json:"status_counts"`
	PriorityCounts   map[int]int      `json:"priority_counts"`
	DailyCompletions []DailyCompleted `json:"daily_completions"`
}

// DailyCompleted is the number of tasks completed on one calendar day.
type DailyCompleted struct {
	Date      string `json:"date"` // YYYY-MM-DD
	Completed int    `json:"completed"`
}

// Store persists tasks, dependency edges, and the notification log.
type Store interface {
	// Create persists a new pending task together with its dependency
	// edges and returns the assigned id. Edges are created only here;
	// they are never mutated afterwards.
	Create(t *Task, dependsOn []int64) (int64, error)

	// Get retrieves a task by id. Returns ErrNotFound if absent.
	Get(id int64) (*Task, error)

	// List returns tasks matching the filter, highest priority first.
	List(filter Filter) ([]*Task, error)

	// ListPending returns every pending task.
	ListPending() ([]*Task, error)

	// ListEdges returns every recorded dependency edge, including edges
	// whose endpoints are no longer pending.
	ListEdges() ([]Edge, error)

	// Complete marks a task completed and stamps CompletedAt.
	// Returns ErrNotFound if absent.
	Complete(id int64) error

	// AppendNotification adds an unread entry to the notification log
	// and returns its id.
	AppendNotification(taskID int64, message string) (int64, error)

	// Notifications returns log entries matching the filter, newest first.
	Notifications(filter NotificationFilter) ([]*Notification, error)

	// MarkNotificationRead flips the read flag on one log entry.
	// Returns ErrNotFound if absent.
	MarkNotificationRead(id int64) error

	// Analytics returns raw status/priority/completion counts.
	Analytics() (*Analytics, error)
}
