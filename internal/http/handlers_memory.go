package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/atriumhub/atrium/internal/core"
)

type storeMemoryRequest struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type,omitempty"`
	ExpiresIn *int64 `json:"expiresIn,omitempty"`
}

// handleMemory dispatches POST /api/memory/{agentId} (store) and
// GET /api/memory/{agentId} (get) onto the same prefix.
func (s *Service) handleMemory(w http.ResponseWriter, r *http.Request) {
	agentID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/memory/"), "/")
	if agentID == "" {
		badRequest(w, "agentId is required")
		return
	}
	switch r.Method {
	case http.MethodPost:
		s.handleStoreMemory(w, r, agentID)
	case http.MethodGet:
		s.handleGetMemory(w, r, agentID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Service) handleStoreMemory(w http.ResponseWriter, r *http.Request, agentID string) {
	var req storeMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		badRequest(w, "key is required")
		return
	}

	entry := core.MemoryEntry{AgentID: agentID, Key: req.Key, Value: req.Value, Type: req.Type}
	if req.ExpiresIn != nil {
		expiresAt := time.Now().UTC().Add(time.Duration(*req.ExpiresIn) * time.Second)
		entry.ExpiresAt = &expiresAt
	}

	saved, err := s.store.UpsertMemory(r.Context(), entry)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entry": saved})
}

func (s *Service) handleGetMemory(w http.ResponseWriter, r *http.Request, agentID string) {
	key := r.URL.Query().Get("key")
	typ := r.URL.Query().Get("type")

	entries, err := s.store.ListMemory(r.Context(), agentID, key, typ, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
