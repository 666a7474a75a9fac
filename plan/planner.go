package plan

import (
	"log/slog"

	"github.com/GoCodeAlone/tempo/task"
)

// Planner binds the ordering algorithm to a task store.
type Planner struct {
	store  task.Store
	logger *slog.Logger
}

// NewPlanner creates a Planner reading from the given store.
func NewPlanner(store task.Store, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{store: store, logger: logger}
}

// OrderedTasks reads a snapshot of pending tasks and edges and returns
// the execution order. Each call takes its own independent snapshot;
// concurrent calls may observe different store states. A dependency
// cycle degrades to priority-only order and is logged, never surfaced
// as an error. Only store I/O failures propagate.
func (p *Planner) OrderedTasks() ([]*task.Task, error) {
	tasks, err := p.store.ListPending()
	if err != nil {
		return nil, err
	}
	edges, err := p.store.ListEdges()
	if err != nil {
		return nil, err
	}

	ordered, acyclic := Order(tasks, edges)
	if !acyclic {
		p.logger.Warn("dependency cycle detected, falling back to priority order",
			slog.Int("tasks", len(ordered)))
	}
	return ordered, nil
}
