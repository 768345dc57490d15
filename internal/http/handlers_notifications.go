package httpapi

import (
	"net/http"
	"strings"
)

// handleNotifications dispatches GET /api/notifications/{agentId} and
// POST /api/notifications/{id}/read onto the same prefix.
func (s *Service) handleNotifications(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/notifications/"), "/")
	if path == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if strings.HasSuffix(path, "/read") {
		s.handleMarkNotificationRead(w, r, strings.TrimSuffix(path, "/read"))
		return
	}
	s.handleListNotifications(w, r, path)
}

func (s *Service) handleListNotifications(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"
	notifications, err := s.store.ListNotifications(r.Context(), agentID, unreadOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *Service) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id = strings.Trim(strings.TrimSuffix(id, "/"), "/")
	if id == "" {
		badRequest(w, "notification id is required")
		return
	}
	var changed bool
	var err error
	if s.notify != nil {
		changed, err = s.notify.MarkRead(r.Context(), id)
	} else {
		changed, err = s.store.MarkNotificationRead(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": changed})
}
