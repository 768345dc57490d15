package httpapi

import (
	"net/http"
	"testing"
)

func TestHandleJoinIsIdempotentAndListsRooms(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/join/lab", joinRequest{AgentID: "a1", AgentName: "Alice"})
	requireStatus(t, resp, http.StatusOK)
	joined := decodeJSON[joinResponse](t, resp)
	if !joined.Success || len(joined.Agents) != 1 {
		t.Fatalf("unexpected join response: %+v", joined)
	}

	resp = env.post(t, "/api/join/lab", joinRequest{AgentID: "a1", AgentName: "Alice"})
	requireStatus(t, resp, http.StatusOK)
	rejoined := decodeJSON[joinResponse](t, resp)
	if len(rejoined.Agents) != 1 {
		t.Fatalf("expected idempotent join to keep roster at 1, got %d", len(rejoined.Agents))
	}

	resp = env.get(t, "/api/rooms")
	requireStatus(t, resp, http.StatusOK)
	rooms := decodeJSON[listRoomsResponse](t, resp)
	if len(rooms.Rooms) != 1 || rooms.Rooms[0].AgentCount != 1 {
		t.Fatalf("unexpected rooms listing: %+v", rooms)
	}
}

func TestHandleLeaveRemovesAgentFromRoster(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/join/lab", joinRequest{AgentID: "a1", AgentName: "Alice"})

	resp := env.post(t, "/api/leave/a1", nil)
	requireStatus(t, resp, http.StatusOK)

	resp = env.get(t, "/api/agents/lab")
	requireStatus(t, resp, http.StatusOK)
	agents := decodeJSON[struct {
		Agents []any `json:"agents"`
	}](t, resp)
	if len(agents.Agents) != 0 {
		t.Fatalf("expected empty roster after leave, got %d", len(agents.Agents))
	}
}

func TestHandleLeaveUnknownAgentReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)
	resp := env.post(t, "/api/leave/ghost", nil)
	requireStatus(t, resp, http.StatusNotFound)
}
