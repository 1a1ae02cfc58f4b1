package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"tally/internal/apperr"
	"tally/internal/cache"
	"tally/internal/category"
	"tally/internal/session"
	"tally/internal/stats"
)

type CategoryHandler struct {
	Categories *category.Service
	Sessions   *session.Service
	Stats      *stats.Service
	Cache      cache.Cache
	Log        hclog.Logger
}

type categoryReq struct {
	Name       string          `json:"name"`
	Importance *float64        `json:"importance"`
	Color      *category.Color `json:"color"`
	Session    *uuid.UUID      `json:"session"`
}

type updateCategoryReq struct {
	Name       *string         `json:"name"`
	Importance *float64        `json:"importance"`
	Color      *category.Color `json:"color"`
}

func (r categoryReq) spec() category.Spec {
	return category.Spec{
		Name:       r.Name,
		Importance: r.Importance,
		Color:      r.Color,
		SessionID:  r.Session,
	}
}

func (h *CategoryHandler) Colors(w http.ResponseWriter, r *http.Request) {
	colors, err := h.Categories.Colors(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, colors)
}

func (h *CategoryHandler) Global(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Categories.ListGlobal(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Categories.ListByUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *CategoryHandler) BySession(w http.ResponseWriter, r *http.Request) {
	sid, err := pathID(r, "sessionId")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	cats, err := h.Sessions.Categories(r.Context(), userID(r), sid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// Create accepts a single category or an array of them. An array is created
// all or nothing.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var reqs []categoryReq
	var one categoryReq
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	batch := isArray(body)
	if batch {
		err = unmarshal(body, &reqs)
	} else {
		err = unmarshal(body, &one)
		reqs = []categoryReq{one}
	}
	if err == nil && len(reqs) == 0 {
		err = apperr.Invalid("no category given")
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	specs := make([]category.Spec, len(reqs))
	for i, req := range reqs {
		specs[i] = req.spec()
	}
	cats, err := h.Categories.CreateMany(r.Context(), userID(r), specs)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if !batch {
		writeJSON(w, http.StatusCreated, cats[0])
		return
	}
	writeJSON(w, http.StatusCreated, cats)
}

// Get returns the category with its period statistics.
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	detail, err := h.Stats.Category(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Update changes name, color and importance together or not at all, then
// drops the cached statistics of every session listing the category.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req updateCategoryReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	out, touched, err := h.Sessions.UpdateCategory(r.Context(), userID(r), id, category.UpdateInput{
		Name:       req.Name,
		Color:      req.Color,
		Importance: req.Importance,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	invalidateSessions(r, h.Cache, h.Log, touched)
	writeJSON(w, http.StatusOK, out)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	touched, err := h.Sessions.RemoveCategory(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	invalidateSessions(r, h.Cache, h.Log, touched)
	w.WriteHeader(http.StatusNoContent)
}
