package plan

import (
	"os"
	"testing"

	"github.com/GoCodeAlone/tempo/task"
)

func newPlannerWithStore(t *testing.T) (*Planner, *task.SQLiteStore) {
	t.Helper()
	f, err := os.CreateTemp("", "tempo-plan-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	store, err := task.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewPlanner(store, nil), store
}

func TestPlanner_OrderedTasks(t *testing.T) {
	planner, store := newPlannerWithStore(t)

	base, err := store.Create(&task.Task{Title: "base", Priority: 3}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	follow, err := store.Create(&task.Task{Title: "follow", Priority: 9}, []int64{base})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	loose, err := store.Create(&task.Task{Title: "loose", Priority: 5}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ordered, err := planner.OrderedTasks()
	if err != nil {
		t.Fatalf("OrderedTasks: %v", err)
	}
	assertOrder(t, ordered, []int64{loose, base, follow})
}

func TestPlanner_CompletedPrerequisiteUnblocks(t *testing.T) {
	planner, store := newPlannerWithStore(t)

	base, _ := store.Create(&task.Task{Title: "base", Priority: 1}, nil)
	follow, _ := store.Create(&task.Task{Title: "follow", Priority: 9}, []int64{base})
	other, _ := store.Create(&task.Task{Title: "other", Priority: 5}, nil)

	if err := store.Complete(base); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// The edge now dangles: follow is unconstrained and its completed
	// prerequisite never appears in the output.
	ordered, err := planner.OrderedTasks()
	if err != nil {
		t.Fatalf("OrderedTasks: %v", err)
	}
	assertOrder(t, ordered, []int64{follow, other})
}
