// Package api implements the tempo REST API handlers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/tempo/notify"
	"github.com/GoCodeAlone/tempo/plan"
	"github.com/GoCodeAlone/tempo/remind"
	"github.com/GoCodeAlone/tempo/task"
)

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Store     task.Store
	Planner   *plan.Planner
	Reminders *remind.Scheduler
	Bus       *notify.Bus
	Logger    *slog.Logger
	Version   string
	StartAt   int64 // unix timestamp of server start
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("GET /api/tasks/ordered", h.orderedTasks)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("POST /api/tasks/{id}/complete", h.completeTask)
	mux.HandleFunc("POST /api/tasks/{id}/notify", h.notifyTask)

	mux.HandleFunc("GET /api/notifications", h.listNotifications)
	mux.HandleFunc("POST /api/notifications/{id}/read", h.readNotification)

	mux.HandleFunc("GET /api/analytics", h.analytics)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := task.Filter{}

	if s := q.Get("status"); s != "" {
		st := task.Status(s)
		if st != task.StatusPending && st != task.StatusCompleted {
			writeError(w, http.StatusBadRequest, "unknown status "+s)
			return
		}
		filter.Status = &st
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	tasks, err := h.Store.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// orderedTasks returns every pending task in dependency-aware priority
// order.
func (h *Handlers) orderedTasks(w http.ResponseWriter, _ *http.Request) {
	tasks, err := h.Planner.OrderedTasks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// createTaskRequest is the body accepted by POST /api/tasks.
type createTaskRequest struct {
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	Priority          int     `json:"priority"`
	Deadline          string  `json:"deadline,omitempty"` // RFC3339
	EstimatedDuration int     `json:"estimated_duration,omitempty"`
	DependsOn         []int64 `json:"depends_on,omitempty"`
}

// createTask validates the request, persists the task with its
// dependency edges, and registers deadline reminders. Validation lives
// here: the core packages assume inputs are already well formed.
func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Priority <= 0 {
		writeError(w, http.StatusBadRequest, "priority must be a positive integer")
		return
	}
	if req.EstimatedDuration < 0 {
		writeError(w, http.StatusBadRequest, "estimated_duration must not be negative")
		return
	}

	var deadline *time.Time
	if req.Deadline != "" {
		d, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "deadline must be RFC3339: "+err.Error())
			return
		}
		deadline = &d
	}

	for _, dep := range req.DependsOn {
		if _, err := h.Store.Get(dep); err != nil {
			if errors.Is(err, task.ErrNotFound) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("depends_on task %d does not exist", dep))
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	t := &task.Task{
		Title:             req.Title,
		Description:       req.Description,
		Priority:          req.Priority,
		Deadline:          deadline,
		EstimatedDuration: req.EstimatedDuration,
	}
	id, err := h.Store.Create(t, req.DependsOn)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if deadline != nil && h.Reminders != nil {
		h.Reminders.Schedule(id, *deadline)
	}
	if h.Bus != nil {
		h.Bus.Publish(notify.Event{Type: notify.TypeTaskCreated, TaskID: id, Message: t.Title})
	}

	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.Store.Get(id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// completeTask marks a task completed. Pending reminder timers are left
// alone; a reminder for a completed task still fires.
func (h *Handlers) completeTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Store.Complete(id); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.Bus != nil {
		h.Bus.Publish(notify.Event{Type: notify.TypeTaskCompleted, TaskID: id})
	}
	w.WriteHeader(http.StatusNoContent)
}

// notifyTask fires an on-demand reminder for a task. A missing task is
// a no-op by design, so the response is 202 either way.
func (h *Handlers) notifyTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Reminders.FireNow(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// --- Notification handlers ---

func (h *Handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := task.NotificationFilter{}

	if v := q.Get("task_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid task_id")
			return
		}
		filter.TaskID = id
	}
	if q.Get("unread") == "true" {
		filter.UnreadOnly = true
	}

	notifs, err := h.Store.Notifications(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notifs == nil {
		notifs = []*task.Notification{}
	}
	writeJSON(w, http.StatusOK, notifs)
}

func (h *Handlers) readNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Store.MarkNotificationRead(id); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Analytics ---

func (h *Handlers) analytics(w http.ResponseWriter, _ *http.Request) {
	a, err := h.Store.Analytics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// --- Status / version ---

// StatusHandler returns a handler reporting server health. It is
// mounted outside the auth middleware.
func (h *Handlers) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		pending := 0
		if h.Reminders != nil {
			pending = h.Reminders.Pending()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"version":        h.Version,
			"started_at":     h.StartAt,
			"pending_timers": pending,
			"uptime_seconds": time.Now().Unix() - h.StartAt,
		})
	}
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
}
