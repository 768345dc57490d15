package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/atriumhub/atrium/internal/core"
)

// agentView adds a humanized age alongside the raw timestamp core.Agent
// already carries, for callers rendering a roster without doing their own
// time math.
type agentView struct {
	core.Agent
	LastActiveHuman string `json:"lastActiveHuman"`
}

func viewAgents(agents []core.Agent) []agentView {
	out := make([]agentView, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentView{Agent: a, LastActiveHuman: humanize.Time(a.LastActive)})
	}
	return out
}

type joinRequest struct {
	AgentID      string         `json:"agentId"`
	AgentName    string         `json:"agentName"`
	Capabilities map[string]any `json:"capabilities,omitempty"`
}

type joinResponse struct {
	Success bool         `json:"success"`
	Room    core.Room    `json:"room"`
	Agents  []core.Agent `json:"agents"`
}

func (s *Service) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	room := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/join/"), "/")
	if room == "" {
		badRequest(w, "room is required")
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.AgentID) == "" {
		badRequest(w, "agentId is required")
		return
	}

	roomSnapshot, roster, err := s.hub.JoinRoom(r.Context(), room, req.AgentID, req.AgentName, req.Capabilities)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{Success: true, Room: roomSnapshot, Agents: roster})
}

func (s *Service) handleLeave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	agentID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/leave/"), "/")
	if agentID == "" {
		badRequest(w, "agentId is required")
		return
	}
	if err := s.hub.LeaveRoom(r.Context(), agentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type listRoomsResponse struct {
	Rooms []roomSummary `json:"rooms"`
}

type roomSummary struct {
	Name       string      `json:"name"`
	AgentCount int         `json:"agentCount"`
	Agents     []agentView `json:"agents"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func (s *Service) handleListRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rooms, counts, err := s.hub.ListRooms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]roomSummary, 0, len(rooms))
	for _, rm := range rooms {
		agents, err := s.hub.ListAgents(r.Context(), rm.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, roomSummary{
			Name:       rm.Name,
			AgentCount: counts[rm.Name],
			Agents:     viewAgents(agents),
			CreatedAt:  rm.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, listRoomsResponse{Rooms: out})
}

func (s *Service) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	room := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/agents/"), "/")
	if room == "" {
		badRequest(w, "room is required")
		return
	}
	agents, err := s.hub.ListAgents(r.Context(), room)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": viewAgents(agents)})
}
