package httpapi

import (
	"net/http"
	"testing"

	"github.com/atriumhub/atrium/internal/core"
)

func TestTaskLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/tasks", createTaskRequest{RoomName: "lab", Title: "T", Description: "d", Creator: "Alice"})
	requireStatus(t, resp, http.StatusOK)
	created := decodeJSON[struct {
		Success bool      `json:"success"`
		Task    core.Task `json:"task"`
	}](t, resp)
	if created.Task.Status != core.TaskTodo {
		t.Fatalf("expected new task status=todo, got %q", created.Task.Status)
	}

	status := core.TaskInProgress
	assignee := "Bob"
	resp = env.post(t, "/api/tasks/"+created.Task.ID+"/update", updateTaskRequest{Status: &status, Assignee: &assignee})
	requireStatus(t, resp, http.StatusOK)

	resp = env.get(t, "/api/tasks/lab")
	requireStatus(t, resp, http.StatusOK)
	listed := decodeJSON[struct {
		Tasks []core.Task `json:"tasks"`
	}](t, resp)
	if len(listed.Tasks) != 1 || listed.Tasks[0].Status != core.TaskInProgress || listed.Tasks[0].Assignee != "Bob" {
		t.Fatalf("unexpected task after update: %+v", listed.Tasks)
	}
	if !listed.Tasks[0].UpdatedAt.After(created.Task.CreatedAt) && !listed.Tasks[0].UpdatedAt.Equal(created.Task.CreatedAt) {
		t.Fatalf("expected updatedAt >= createdAt")
	}
}

func TestCreateTaskMissingFieldsRejected(t *testing.T) {
	env := newTestEnv(t)
	resp := env.post(t, "/api/tasks", createTaskRequest{RoomName: "lab"})
	requireStatus(t, resp, http.StatusBadRequest)
}
