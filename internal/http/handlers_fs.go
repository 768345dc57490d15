package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/atriumhub/atrium/internal/core"
)

// handlers for the sandboxed shared filesystem (§4.7). Not exposed as a
// room/agent-scoped concept; every call is validated against the shared
// directory root regardless of caller.

func (s *Service) fsUnavailable(w http.ResponseWriter) bool {
	if s.fs != nil {
		return false
	}
	writeError(w, errors.New("shared filesystem is disabled"))
	return true
}

func (s *Service) handleFSRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.fsUnavailable(w) {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		badRequest(w, "path is required")
		return
	}
	data, err := s.fs.Read(r.Context(), path)
	if err != nil {
		writeError(w, translateFSErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "content": string(data)})
}

type fsWriteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Service) handleFSWrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.fsUnavailable(w) {
		return
	}
	var req fsWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Path == "" {
		badRequest(w, "path is required")
		return
	}
	if err := s.fs.Write(r.Context(), req.Path, []byte(req.Content)); err != nil {
		writeError(w, translateFSErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleFSList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.fsUnavailable(w) {
		return
	}
	path := r.URL.Query().Get("path")
	pattern := r.URL.Query().Get("pattern")
	entries, err := s.fs.List(r.Context(), path, pattern)
	if err != nil {
		writeError(w, translateFSErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type fsDeleteRequest struct {
	Path string `json:"path"`
}

func (s *Service) handleFSDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.fsUnavailable(w) {
		return
	}
	var req fsDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Path == "" {
		badRequest(w, "path is required")
		return
	}
	if err := s.fs.Delete(r.Context(), req.Path); err != nil {
		writeError(w, translateFSErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// translateFSErr maps a raw os.* error onto the sentinel kinds writeError
// understands; path-escape errors already carry core.ErrPathEscape and pass
// through unchanged.
func translateFSErr(err error) error {
	if errors.Is(err, core.ErrPathEscape) {
		return err
	}
	if os.IsNotExist(err) {
		return fmt.Errorf("%v: %w", err, core.ErrNotFound)
	}
	return err
}
