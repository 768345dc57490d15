package httpapi

import (
	"net/http"
	"testing"

	"github.com/atriumhub/atrium/internal/core"
)

func TestMarkNotificationReadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/join/lab", joinRequest{AgentID: "a1", AgentName: "Alice"})
	env.post(t, "/api/join/lab", joinRequest{AgentID: "a2", AgentName: "Bob"})
	env.post(t, "/api/send", sendRequest{AgentID: "a1", Content: "hi @Bob"})

	resp := env.get(t, "/api/notifications/a2")
	got := decodeJSON[struct {
		Notifications []core.Notification `json:"notifications"`
	}](t, resp)
	if len(got.Notifications) != 1 {
		t.Fatalf("expected one notification, got %d", len(got.Notifications))
	}
	id := got.Notifications[0].ID

	resp = env.post(t, "/api/notifications/"+id+"/read", nil)
	requireStatus(t, resp, http.StatusOK)
	first := decodeJSON[struct {
		Updated bool `json:"updated"`
	}](t, resp)
	if !first.Updated {
		t.Fatalf("expected first mark-read to report updated=true")
	}

	resp = env.post(t, "/api/notifications/"+id+"/read", nil)
	second := decodeJSON[struct {
		Updated bool `json:"updated"`
	}](t, resp)
	if second.Updated {
		t.Fatalf("expected second mark-read to report updated=false")
	}
}
