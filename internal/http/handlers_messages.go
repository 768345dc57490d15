package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/atriumhub/atrium/internal/core"
	"github.com/atriumhub/atrium/internal/mention"
)

const defaultHistoryLimit = 100

type sendRequest struct {
	AgentID  string         `json:"agentId"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type sendResponse struct {
	Success   bool     `json:"success"`
	MessageID string   `json:"messageId"`
	Mentions  []string `json:"mentions"`
}

// handleSend implements the send operation (§4.8): parse mentions, append
// the message in the sender's current room, create notifications, and
// publish the message event.
func (s *Service) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	agent, ok := s.hub.AgentByID(req.AgentID)
	if !ok {
		writeError(w, core.ErrNotFound)
		return
	}

	mentions := mention.Parse(req.Content)
	msg := core.Message{
		Room: agent.Room, AgentID: agent.ID, AgentName: agent.Name,
		Content: req.Content, Type: core.MessageChat, Mentions: mentions, Metadata: req.Metadata,
	}
	saved, err := s.hub.AppendMessage(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.notify != nil {
		if _, err := s.notify.Notify(r.Context(), saved); err != nil {
			writeError(w, err)
			return
		}
	}
	if s.bus != nil {
		s.bus.Publish(agent.Room, core.Event{Kind: core.EventMessage, Message: &saved})
	}

	writeJSON(w, http.StatusOK, sendResponse{Success: true, MessageID: saved.ID, Mentions: saved.Mentions})
}

func (s *Service) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	room := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/messages/"), "/")
	if room == "" {
		badRequest(w, "room is required")
		return
	}

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			badRequest(w, "invalid since timestamp")
			return
		}
		since = parsed
	}
	limit, empty := parseLimit(r.URL.Query(), defaultHistoryLimit)
	if empty {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []core.Message{}})
		return
	}

	msgs, err := s.hub.History(r.Context(), room, since, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type broadcastRequest struct {
	Content string `json:"content"`
	From    string `json:"from,omitempty"`
}

func (s *Service) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	room := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/broadcast/"), "/")
	if room == "" {
		badRequest(w, "room is required")
		return
	}
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	from := req.From
	if from == "" {
		from = "System"
	}

	msg := core.Message{
		Room: room, AgentName: from, Type: core.MessageBroadcast,
		Content: "[" + from + "] " + req.Content,
	}
	saved, err := s.hub.AppendMessage(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.bus != nil {
		s.bus.Publish(room, core.Event{Kind: core.EventMessage, Message: &saved})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messageId": saved.ID})
}

// parseLimit reads the limit query param: absent falls back to def, an
// explicit "0" reports empty=true (the caller returns no results without
// consulting the room log), and a non-numeric or negative value also falls
// back to def per §8's boundary rules.
func parseLimit(q url.Values, def int) (limit int, empty bool) {
	if !q.Has("limit") {
		return def, false
	}
	raw := q.Get("limit")
	if raw == "0" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def, false
	}
	return n, false
}
