package handler

import (
	"net/http"

	"github.com/hashicorp/go-hclog"

	"tally/internal/auth"
)

type AuthHandler struct {
	Users *auth.Service
	JWT   *auth.JWT
	Log   hclog.Logger
}

type registerReq struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	u, err := h.Users.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.issue(w, r, http.StatusCreated, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	u, err := h.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.issue(w, r, http.StatusOK, u)
}

// Validate checks the bearer token of the request and echoes its claims.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := h.JWT.Verify(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "user": claims})
}

// Refresh signs a fresh token for the authenticated user.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.issue(w, r, http.StatusOK, u)
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, status int, u auth.User) {
	token, err := h.JWT.Sign(u)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, status, map[string]any{"token": token})
}
