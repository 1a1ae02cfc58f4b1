package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"tally/internal/apperr"
	"tally/internal/auth"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code. Unexpected errors are logged and
// answered with a generic body.
func writeError(w http.ResponseWriter, r *http.Request, log hclog.Logger, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		http.Error(w, apperr.Reason(err)+" not found", http.StatusNotFound)
	case errors.Is(err, apperr.ErrInvalidInput):
		http.Error(w, apperr.Reason(err), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, apperr.ErrInconsistent):
		http.Error(w, apperr.Reason(err), http.StatusUnprocessableEntity)
	case errors.Is(err, auth.ErrInvalidCredentials):
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	default:
		if log != nil {
			log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		}
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Invalid("bad json")
	}
	return nil
}

const maxBody = 1 << 20

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, apperr.Invalid("unreadable body")
	}
	return body, nil
}

func isArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func unmarshal(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Invalid("bad json")
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Invalid("%q is not a valid id", raw)
	}
	return id, nil
}

func userID(r *http.Request) uuid.UUID {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}
