package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atriumhub/atrium/internal/core"
)

type createTaskRequest struct {
	RoomName    string            `json:"roomName"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Assignee    string            `json:"assignee,omitempty"`
	Creator     string            `json:"creator"`
	Priority    core.TaskPriority `json:"priority,omitempty"`
}

func (s *Service) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.RoomName) == "" || strings.TrimSpace(req.Title) == "" {
		badRequest(w, "roomName and title are required")
		return
	}

	task, err := s.hub.CreateTask(r.Context(), core.Task{
		Room: req.RoomName, Title: req.Title, Description: req.Description,
		Assignee: req.Assignee, Creator: req.Creator, Priority: req.Priority,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if s.bus != nil {
		s.bus.Publish(req.RoomName, core.Event{Kind: core.EventTask, TaskAction: "created", Task: &task})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": task})
}

// handleTaskByRoomOrUpdate dispatches GET /api/tasks/{room} and
// POST /api/tasks/{id}/update onto the same prefix.
func (s *Service) handleTaskByRoomOrUpdate(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tasks/"), "/")
	if path == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if strings.HasSuffix(path, "/update") {
		s.handleUpdateTask(w, r, strings.TrimSuffix(path, "/update"))
		return
	}
	s.handleListTasks(w, r, path)
}

func (s *Service) handleListTasks(w http.ResponseWriter, r *http.Request, room string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tasks, err := s.hub.ListTasks(r.Context(), room)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

type updateTaskRequest struct {
	Status   *core.TaskStatus   `json:"status,omitempty"`
	Assignee *string            `json:"assignee,omitempty"`
	Priority *core.TaskPriority `json:"priority,omitempty"`
}

func (s *Service) handleUpdateTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if taskID == "" {
		badRequest(w, "task id is required")
		return
	}
	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	task, err := s.hub.UpdateTask(r.Context(), taskID, req.Status, req.Assignee, req.Priority)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.bus != nil {
		s.bus.Publish(task.Room, core.Event{Kind: core.EventTask, TaskAction: "updated", Task: &task})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": task})
}
