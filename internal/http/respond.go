package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atriumhub/atrium/internal/core"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code per §7's error kinds and writes the
// failure envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrPathEscape):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Success: false, Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Success: false, Error: msg})
}
