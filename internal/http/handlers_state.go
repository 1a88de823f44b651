package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"tabi/internal/storage"
)

// The state surface stores exactly two fixed keys, each a JSON array: the
// checklist completion set and the free-form shopping list.
var allowedStateKeys = map[string]struct{}{
	storage.StateKeyCheckedItems: {},
	storage.StateKeyShoppingList: {},
}

type stateResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, ok := allowedStateKeys[key]; !ok {
		writeError(w, http.StatusNotFound, "unknown state key")
		return
	}
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "state storage not configured")
		return
	}

	value, err := s.repo.GetState(r.Context(), key)
	if errors.Is(err, storage.ErrStateNotFound) {
		// Never-written keys read as an empty list, matching the client's
		// first-run behavior.
		writeJSON(w, http.StatusOK, stateResponse{Key: key, Value: json.RawMessage("[]")})
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Read state failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "read state failed")
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Key: key, Value: json.RawMessage(value)})
}

func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, ok := allowedStateKeys[key]; !ok {
		writeError(w, http.StatusNotFound, "unknown state key")
		return
	}
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "state storage not configured")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body failed")
		return
	}

	var value []json.RawMessage
	if err := json.Unmarshal(raw, &value); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "state value must be a JSON array")
		return
	}

	if err := s.repo.SetState(r.Context(), key, string(raw)); err != nil {
		slog.ErrorContext(r.Context(), "Write state failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "write state failed")
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Key: key, Value: json.RawMessage(raw)})
}
