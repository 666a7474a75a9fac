package plan

import (
	"testing"
	"time"

	"github.com/GoCodeAlone/tempo/task"
)

func mkTask(id int64, priority int, deadline *time.Time) *task.Task {
	return &task.Task{
		ID:       id,
		Title:    "task",
		Priority: priority,
		Deadline: deadline,
		Status:   task.StatusPending,
	}
}

func at(t time.Time) *time.Time { return &t }

func ids(tasks []*task.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func assertOrder(t *testing.T, got []*task.Task, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", ids(got), want)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("got %v, want %v", ids(got), want)
		}
	}
}

func TestOrder_PriorityDominates(t *testing.T) {
	tasks := []*task.Task{
		mkTask(1, 2, nil),
		mkTask(2, 5, nil),
	}
	ordered, acyclic := Order(tasks, nil)
	if !acyclic {
		t.Fatal("expected acyclic")
	}
	assertOrder(t, ordered, []int64{2, 1})
}

func TestOrder_DeadlineBreaksPriorityTie(t *testing.T) {
	// A has no deadline, B has one: B wins the tie regardless of id order.
	d := time.Now().Add(time.Hour)
	tasks := []*task.Task{
		mkTask(1, 5, nil),
		mkTask(2, 5, at(d)),
	}
	ordered, _ := Order(tasks, nil)
	assertOrder(t, ordered, []int64{2, 1})

	// Earlier deadline first.
	tasks = []*task.Task{
		mkTask(1, 5, at(d.Add(time.Hour))),
		mkTask(2, 5, at(d)),
	}
	ordered, _ = Order(tasks, nil)
	assertOrder(t, ordered, []int64{2, 1})
}

func TestOrder_IDBreaksRemainingTie(t *testing.T) {
	d := time.Now().Add(time.Hour)
	tasks := []*task.Task{
		mkTask(9, 5, at(d)),
		mkTask(3, 5, at(d)),
		mkTask(7, 5, at(d)),
	}
	ordered, _ := Order(tasks, nil)
	assertOrder(t, ordered, []int64{3, 7, 9})
}

func TestOrder_DependencyDominatesPriority(t *testing.T) {
	tasks := []*task.Task{
		mkTask(1, 3, nil),
		mkTask(2, 9, nil),
	}
	edges := []task.Edge{{TaskID: 2, DependsOnID: 1}}
	ordered, acyclic := Order(tasks, edges)
	if !acyclic {
		t.Fatal("expected acyclic")
	}
	assertOrder(t, ordered, []int64{1, 2})
}

func TestOrder_EveryEdgeRespected(t *testing.T) {
	// Diamond: 4 depends on 2 and 3, both depend on 1.
	tasks := []*task.Task{
		mkTask(1, 1, nil),
		mkTask(2, 8, nil),
		mkTask(3, 4, nil),
		mkTask(4, 9, nil),
	}
	edges := []task.Edge{
		{TaskID: 2, DependsOnID: 1},
		{TaskID: 3, DependsOnID: 1},
		{TaskID: 4, DependsOnID: 2},
		{TaskID: 4, DependsOnID: 3},
	}
	ordered, acyclic := Order(tasks, edges)
	if !acyclic {
		t.Fatal("expected acyclic")
	}

	pos := make(map[int64]int)
	for i, tk := range ordered {
		pos[tk.ID] = i
	}
	for _, e := range edges {
		if pos[e.DependsOnID] >= pos[e.TaskID] {
			t.Errorf("edge %d->%d violated: %v", e.TaskID, e.DependsOnID, ids(ordered))
		}
	}
	// Among the two ready siblings, higher priority goes first.
	if pos[2] >= pos[3] {
		t.Errorf("priority not used in ready set: %v", ids(ordered))
	}
}

func TestOrder_CycleFallsBackToPriorityOrder(t *testing.T) {
	tasks := []*task.Task{
		mkTask(1, 4, nil), // P
		mkTask(2, 7, nil), // Q
	}
	edges := []task.Edge{
		{TaskID: 1, DependsOnID: 2},
		{TaskID: 2, DependsOnID: 1},
	}
	ordered, acyclic := Order(tasks, edges)
	if acyclic {
		t.Fatal("expected cycle")
	}
	assertOrder(t, ordered, []int64{2, 1})
}

func TestOrder_CycleFallbackIsTotal(t *testing.T) {
	// Task 3 is orderable before the cycle between 1 and 2 is
	// discovered; the fallback must still contain all three, uniformly
	// priority-sorted.
	tasks := []*task.Task{
		mkTask(1, 4, nil),
		mkTask(2, 7, nil),
		mkTask(3, 5, nil),
	}
	edges := []task.Edge{
		{TaskID: 1, DependsOnID: 2},
		{TaskID: 2, DependsOnID: 1},
	}
	ordered, acyclic := Order(tasks, edges)
	if acyclic {
		t.Fatal("expected cycle")
	}
	assertOrder(t, ordered, []int64{2, 3, 1})
}

func TestOrder_DanglingEdgeIgnored(t *testing.T) {
	// Edge to a task outside the pending set (completed or deleted)
	// must not constrain or break the ordering.
	tasks := []*task.Task{
		mkTask(1, 2, nil),
		mkTask(2, 6, nil),
	}
	edges := []task.Edge{
		{TaskID: 2, DependsOnID: 99}, // prerequisite no longer pending
		{TaskID: 98, DependsOnID: 1}, // dependent no longer pending
	}
	ordered, acyclic := Order(tasks, edges)
	if !acyclic {
		t.Fatal("expected acyclic")
	}
	assertOrder(t, ordered, []int64{2, 1})
}

func TestOrder_Deterministic(t *testing.T) {
	d := time.Now().Add(time.Hour)
	tasks := []*task.Task{
		mkTask(5, 3, nil),
		mkTask(2, 3, at(d)),
		mkTask(9, 7, nil),
		mkTask(4, 3, at(d)),
	}
	edges := []task.Edge{{TaskID: 9, DependsOnID: 5}}

	first, _ := Order(tasks, edges)
	for i := 0; i < 10; i++ {
		again, _ := Order(tasks, edges)
		assertOrder(t, again, ids(first))
	}
}

func TestOrder_Empty(t *testing.T) {
	ordered, acyclic := Order(nil, nil)
	if !acyclic || len(ordered) != 0 {
		t.Fatalf("ordered = %v, acyclic = %v", ordered, acyclic)
	}
}
