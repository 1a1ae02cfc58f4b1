package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"tally/internal/cache"
	"tally/internal/calendar"
	"tally/internal/category"
	"tally/internal/day"
	"tally/internal/session"
)

type SessionHandler struct {
	Sessions *session.Service
	Days     *day.Service
	// Cache, when set, is cleared for a session whose settings change.
	Cache cache.Cache
	Log   hclog.Logger
}

type configureReq struct {
	Title      string        `json:"title"`
	Categories []categoryReq `json:"categories"`
	Start      *string       `json:"start"`
	End        *string       `json:"end"`
	ActiveDays []int         `json:"activeDays"`
}

// updateSessionReq keeps End raw so that an explicit null can clear it.
type updateSessionReq struct {
	Title      *string         `json:"title"`
	Categories *[]uuid.UUID    `json:"categories"`
	Start      *string         `json:"start"`
	End        json.RawMessage `json:"end"`
	ActiveDays []int           `json:"activeDays"`
}

type sessionDetail struct {
	session.Session
	Categories []category.Category `json:"categories"`
	Data       []day.Day           `json:"data"`
}

func optionalDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := calendar.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Sessions.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Create makes an empty session starting today.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Create(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) Configure(w http.ResponseWriter, r *http.Request) {
	var req configureReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	start, err := optionalDate(req.Start)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	end, err := optionalDate(req.End)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	specs := make([]category.Spec, len(req.Categories))
	for i, c := range req.Categories {
		specs[i] = c.spec()
	}

	sess, cats, err := h.Sessions.Configure(r.Context(), userID(r), session.ConfigureInput{
		Title:      req.Title,
		Categories: specs,
		Start:      start,
		End:        end,
		ActiveDays: req.ActiveDays,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionDetail{Session: sess, Categories: cats, Data: []day.Day{}})
}

// Get returns the session with its categories and every logged day, oldest first.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	uid := userID(r)
	ctx := r.Context()

	sess, err := h.Sessions.Get(ctx, uid, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	cats, err := h.Sessions.Categories(ctx, uid, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	days, err := h.Days.ListBySession(ctx, uid, id, nil)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if days == nil {
		days = []day.Day{}
	}
	writeJSON(w, http.StatusOK, sessionDetail{Session: sess, Categories: cats, Data: days})
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req updateSessionReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	in := session.UpdateInput{Title: req.Title, ActiveDays: req.ActiveDays}
	if in.Start, err = optionalDate(req.Start); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if len(req.End) > 0 {
		if bytes.Equal(bytes.TrimSpace(req.End), []byte("null")) {
			in.ClearEnd = true
		} else {
			var raw string
			if err := unmarshal(req.End, &raw); err != nil {
				writeError(w, r, h.Log, err)
				return
			}
			if in.End, err = optionalDate(&raw); err != nil {
				writeError(w, r, h.Log, err)
				return
			}
		}
	}
	if req.Categories != nil {
		in.CategoryIDs = *req.Categories
		in.SetCategory = true
	}

	sess, err := h.Sessions.Update(r.Context(), userID(r), id, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.invalidate(r, id)
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	others, err := h.Sessions.Delete(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.invalidate(r, append(others, id)...)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) invalidate(r *http.Request, ids ...uuid.UUID) {
	invalidateSessions(r, h.Cache, h.Log, ids)
}

// invalidateSessions drops the cached statistics of each session. A failure
// is logged; the write it follows has already committed.
func invalidateSessions(r *http.Request, c cache.Cache, log hclog.Logger, ids []uuid.UUID) {
	if c == nil {
		return
	}
	for _, id := range ids {
		if err := c.Invalidate(r.Context(), cache.SessionKeys(id)...); err != nil && log != nil {
			log.Warn("cache invalidation failed", "session", id, "error", err)
		}
	}
}
