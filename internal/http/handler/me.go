package handler

import (
	"net/http"

	"github.com/hashicorp/go-hclog"

	"tally/internal/auth"
)

type MeHandler struct {
	Users *auth.Service
	Log   hclog.Logger
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
