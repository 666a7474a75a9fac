// Package remind maintains deadline reminder timers and fires them into
// the notification log.
//
// Each pending timer is keyed by (task id, offset label); registering
// the same key again replaces the previous timer, so re-processing a
// task never produces duplicate reminders. Timers for completed tasks
// are not cancelled: a reminder whose task still exists fires regardless
// of status. Only a task missing from the store entirely turns a firing
// into a silent no-op.
package remind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoCodeAlone/tempo/notify"
	"github.com/GoCodeAlone/tempo/task"
)

// Offset is a named lead time before a deadline.
type Offset struct {
	Label string
	Lead  time.Duration
}

// DeadlineOffsets are the lead times registered by Schedule.
var DeadlineOffsets = []Offset{
	{Label: "24h", Lead: 24 * time.Hour},
	{Label: "1h", Lead: time.Hour},
	{Label: "5m", Lead: 5 * time.Minute},
}

// key identifies one pending timer.
type key struct {
	taskID int64
	label  string
}

// Scheduler owns the pending timer set and the background loop that
// drains it. Construct one per process and pass it explicitly.
type Scheduler struct {
	store  task.Store
	bus    *notify.Bus // may be nil
	logger *slog.Logger
	clock  Clock

	mu     sync.Mutex
	timers map[key]time.Time
	wake   chan struct{}
}

// New creates a Scheduler writing notifications through store and
// publishing fired events on bus (nil disables publishing). The timer
// loop does not run until Run is called.
func New(store task.Store, bus *notify.Bus, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		bus:    bus,
		logger: logger,
		clock:  realClock{},
		timers: make(map[key]time.Time),
		wake:   make(chan struct{}, 1),
	}
}

// Schedule registers reminder timers for a deadline at each of
// DeadlineOffsets. Offsets whose fire time is not strictly in the
// future are skipped; they never fire retroactively. Calling Schedule
// again for the same task replaces its pending timers, so deadline
// edits do not duplicate reminders.
func (s *Scheduler) Schedule(taskID int64, deadline time.Time) {
	for _, off := range DeadlineOffsets {
		s.ScheduleAt(taskID, off.Label, deadline.Add(-off.Lead))
	}
}

// ScheduleAt registers a single timer under (taskID, label), replacing
// any pending timer with the same key. A fire time not strictly in the
// future is dropped.
func (s *Scheduler) ScheduleAt(taskID int64, label string, fireAt time.Time) {
	if !fireAt.After(s.clock.Now()) {
		return
	}
	s.mu.Lock()
	s.timers[key{taskID: taskID, label: label}] = fireAt
	s.mu.Unlock()
	s.kick()
}

// Pending returns the number of registered timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// PendingFor returns the number of registered timers for one task.
func (s *Scheduler) PendingFor(taskID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.timers {
		if k.taskID == taskID {
			n++
		}
	}
	return n
}

// FireNow immediately emits a reminder for a task, independent of any
// scheduled timers; it neither consumes nor cancels them. A task
// missing from the store is a silent no-op. Store I/O failures are
// returned.
func (s *Scheduler) FireNow(taskID int64) error {
	return s.emit(taskID, "now")
}

// Run executes the timer loop until ctx is cancelled. It sleeps until
// the nearest fire time, waking early when a registration arrives.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		var next time.Time
		hasNext := false
		for _, at := range s.timers {
			if !hasNext || at.Before(next) {
				next = at
				hasNext = true
			}
		}
		s.mu.Unlock()

		var fire <-chan time.Time
		if hasNext {
			d := next.Sub(s.clock.Now())
			if d <= 0 {
				s.fireDue()
				continue
			}
			fire = s.clock.After(d)
		}

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-fire:
			s.fireDue()
		}
	}
}

// fireDue removes every timer whose fire time has passed and emits its
// reminder. Removal happens under the lock before emission, so a timer
// replaced concurrently either fires under its old time or is replaced,
// never both.
func (s *Scheduler) fireDue() {
	now := s.clock.Now()

	s.mu.Lock()
	var due []key
	for k, at := range s.timers {
		if !at.After(now) {
			due = append(due, k)
			delete(s.timers, k)
		}
	}
	s.mu.Unlock()

	for _, k := range due {
		if err := s.emit(k.taskID, k.label); err != nil {
			s.logger.Error("emit reminder",
				slog.Int64("task", k.taskID),
				slog.String("offset", k.label),
				slog.Any("err", err))
		}
	}
}

// emit reads the task's current state (not the state captured at
// scheduling time) and appends exactly one notification.
func (s *Scheduler) emit(taskID int64, label string) error {
	t, err := s.store.Get(taskID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			// Deleted between scheduling and firing; expected, not a fault.
			return nil
		}
		return fmt.Errorf("read task %d: %w", taskID, err)
	}

	msg := reminderMessage(t, label)
	if _, err := s.store.AppendNotification(taskID, msg); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	s.logger.Info("reminder fired",
		slog.Int64("task", taskID),
		slog.String("offset", label))

	if s.bus != nil {
		s.bus.Publish(notify.Event{
			Type:    notify.TypeReminderFired,
			TaskID:  taskID,
			Message: msg,
		})
	}
	return nil
}

func reminderMessage(t *task.Task, label string) string {
	if t.Deadline == nil {
		return fmt.Sprintf("Reminder: task %q needs attention", t.Title)
	}
	if label == "now" {
		return fmt.Sprintf("Reminder: task %q is due soon (deadline: %s)",
			t.Title, t.Deadline.Format(time.RFC3339))
	}
	return fmt.Sprintf("Reminder: task %q is due in %s (deadline: %s)",
		t.Title, label, t.Deadline.Format(time.RFC3339))
}

// kick wakes the timer loop without blocking.
func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
