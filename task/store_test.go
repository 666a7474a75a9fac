package task

import (
	"errors"
	"os"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp("", "tempo-task-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)

	deadline := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	task := &Task{
		Title:             "Write report",
		Description:       "Quarterly numbers",
		Priority:          5,
		Deadline:          &deadline,
		EstimatedDuration: 90,
	}
	id, err := store.Create(task, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == 0 {
		t.Fatal("Create returned zero ID")
	}
	if task.ID != id {
		t.Errorf("task.ID = %d, want %d", task.ID, id)
	}
	if task.Status != StatusPending {
		t.Errorf("Status = %q, want %q", task.Status, StatusPending)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != task.Title {
		t.Errorf("Title = %q, want %q", got.Title, task.Title)
	}
	if got.Deadline == nil || !got.Deadline.Equal(deadline) {
		t.Errorf("Deadline = %v, want %v", got.Deadline, deadline)
	}
	if got.EstimatedDuration != 90 {
		t.Errorf("EstimatedDuration = %d, want 90", got.EstimatedDuration)
	}
	if got.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", got.CompletedAt)
	}
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(12345)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing id: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_IDsAscend(t *testing.T) {
	store := newTestStore(t)

	a, _ := store.Create(&Task{Title: "a", Priority: 1}, nil)
	b, _ := store.Create(&Task{Title: "b", Priority: 1}, nil)
	if b <= a {
		t.Errorf("ids not ascending: a=%d b=%d", a, b)
	}
}

func TestSQLiteStore_EdgesRoundTrip(t *testing.T) {
	store := newTestStore(t)

	a, err := store.Create(&Task{Title: "base", Priority: 3}, nil)
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	b, err := store.Create(&Task{Title: "follows", Priority: 9}, []int64{a})
	if err != nil {
		t.Fatalf("Create b: %v", err)
	}

	edges, err := store.ListEdges()
	if err != nil {
		t.Fatalf("ListEdges: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("len(edges) = %d, want 1", len(edges))
	}
	if edges[0].TaskID != b || edges[0].DependsOnID != a {
		t.Errorf("edge = %+v, want (%d depends on %d)", edges[0], b, a)
	}
}

func TestSQLiteStore_Complete(t *testing.T) {
	store := newTestStore(t)

	id, _ := store.Create(&Task{Title: "done soon", Priority: 2}, nil)
	if err := store.Complete(id); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	// Completing again keeps the original timestamp.
	first := *got.CompletedAt
	if err := store.Complete(id); err != nil {
		t.Fatalf("Complete twice: %v", err)
	}
	again, _ := store.Get(id)
	if !again.CompletedAt.Equal(first) {
		t.Errorf("CompletedAt changed on second Complete: %v != %v", again.CompletedAt, first)
	}

	if err := store.Complete(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Complete missing id: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_ListPendingExcludesCompleted(t *testing.T) {
	store := newTestStore(t)

	a, _ := store.Create(&Task{Title: "a", Priority: 1}, nil)
	b, _ := store.Create(&Task{Title: "b", Priority: 1}, nil)
	if err := store.Complete(a); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	pending, err := store.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != b {
		t.Errorf("pending = %v, want only task %d", pending, b)
	}
}

func TestSQLiteStore_Notifications(t *testing.T) {
	store := newTestStore(t)

	id, _ := store.Create(&Task{Title: "noisy", Priority: 4}, nil)
	n1, err := store.AppendNotification(id, "first")
	if err != nil {
		t.Fatalf("AppendNotification: %v", err)
	}
	n2, err := store.AppendNotification(id, "second")
	if err != nil {
		t.Fatalf("AppendNotification: %v", err)
	}

	all, err := store.Notifications(NotificationFilter{TaskID: id})
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	// Newest first.
	if all[0].ID != n2 || all[1].ID != n1 {
		t.Errorf("order = [%d %d], want [%d %d]", all[0].ID, all[1].ID, n2, n1)
	}
	if all[0].Read {
		t.Error("new notification should be unread")
	}

	if err := store.MarkNotificationRead(n1); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	unread, err := store.Notifications(NotificationFilter{UnreadOnly: true})
	if err != nil {
		t.Fatalf("Notifications unread: %v", err)
	}
	if len(unread) != 1 || unread[0].ID != n2 {
		t.Errorf("unread = %v, want only %d", unread, n2)
	}

	if err := store.MarkNotificationRead(777); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkNotificationRead missing: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_Analytics(t *testing.T) {
	store := newTestStore(t)

	a, _ := store.Create(&Task{Title: "a", Priority: 1}, nil)
	store.Create(&Task{Title: "b", Priority: 1}, nil)
	store.Create(&Task{Title: "c", Priority: 5}, nil)
	if err := store.Complete(a); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err := store.Analytics()
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if got.StatusCounts["pending"] != 2 || got.StatusCounts["completed"] != 1 {
		t.Errorf("StatusCounts = %v", got.StatusCounts)
	}
	if got.PriorityCounts[1] != 2 || got.PriorityCounts[5] != 1 {
		t.Errorf("PriorityCounts = %v", got.PriorityCounts)
	}
	if len(got.DailyCompletions) != 1 || got.DailyCompletions[0].Completed != 1 {
		t.Errorf("DailyCompletions = %v", got.DailyCompletions)
	}
}
