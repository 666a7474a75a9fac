// Package plan computes a deterministic, dependency-aware execution
// order over pending tasks.
//
// Ordering is Kahn's topological sort with a priority-ordered ready
// set: among tasks whose prerequisites are all satisfied, the highest
// priority task is emitted first, ties broken by earliest deadline,
// then by lowest id. If the dependency graph contains a cycle, the
// whole set is returned in pure priority order instead — the result is
// never partially dependency-ordered.
package plan

import (
	"container/heap"
	"sort"

	"github.com/GoCodeAlone/tempo/task"
)

// Less reports whether a should execute before b, ignoring
// dependencies: higher priority first, then earlier deadline (a missing
// deadline sorts after any concrete one), then lower id. Given unique
// ids this is a strict total order.
func Less(a, b *task.Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	switch {
	case a.Deadline == nil && b.Deadline == nil:
		// fall through to id
	case a.Deadline == nil:
		return false
	case b.Deadline == nil:
		return true
	case !a.Deadline.Equal(*b.Deadline):
		return a.Deadline.Before(*b.Deadline)
	}
	return a.ID < b.ID
}

// Order returns every task exactly once, dependency-constrained where
// possible. An edge whose endpoint is not in tasks is dropped: a
// completed or deleted prerequisite is presumed satisfied. The second
// return value is false when a cycle forced the priority-only fallback.
func Order(tasks []*task.Task, edges []task.Edge) ([]*task.Task, bool) {
	index := make(map[int64]int, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
	}

	dependents := make([][]int, len(tasks))
	indegree := make([]int, len(tasks))
	for _, e := range edges {
		ti, ok := index[e.TaskID]
		if !ok {
			continue
		}
		di, ok := index[e.DependsOnID]
		if !ok {
			continue // dangling: prerequisite already completed or gone
		}
		dependents[di] = append(dependents[di], ti)
		indegree[ti]++
	}

	ready := &readyHeap{tasks: tasks}
	for i := range tasks {
		if indegree[i] == 0 {
			ready.idx = append(ready.idx, i)
		}
	}
	heap.Init(ready)

	ordered := make([]*task.Task, 0, len(tasks))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		ordered = append(ordered, tasks[i])
		for _, d := range dependents[i] {
			indegree[d]--
			if indegree[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}

	if len(ordered) < len(tasks) {
		// Cycle among the remainder. Re-sort the full set so the output
		// is uniformly priority-ordered, not a mix.
		all := make([]*task.Task, len(tasks))
		copy(all, tasks)
		sort.Slice(all, func(i, j int) bool { return Less(all[i], all[j]) })
		return all, false
	}
	return ordered, true
}

// readyHeap is a max-heap of indices into tasks, ordered by Less.
type readyHeap struct {
	tasks []*task.Task
	idx   []int
}

func (h *readyHeap) Len() int           { return len(h.idx) }
func (h *readyHeap) Less(i, j int) bool { return Less(h.tasks[h.idx[i]], h.tasks[h.idx[j]]) }
func (h *readyHeap) Swap(i, j int)      { h.idx[i], h.idx[j] = h.idx[j], h.idx[i] }

func (h *readyHeap) Push(x any) { h.idx = append(h.idx, x.(int)) }

func (h *readyHeap) Pop() any {
	n := len(h.idx)
	v := h.idx[n-1]
	h.idx = h.idx[:n-1]
	return v
}
