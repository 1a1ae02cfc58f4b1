package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"tally/internal/apperr"
	"tally/internal/calendar"
	"tally/internal/day"
	"tally/internal/scoring"
)

type DayHandler struct {
	Days *day.Service
	Now  func() time.Time
	Log  hclog.Logger
}

type createDayReq struct {
	Session    uuid.UUID          `json:"session"`
	Date       string             `json:"date"`
	Categories []scoring.RawScore `json:"categories"`
}

func (h *DayHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// ListMonth returns the days of a month keyed by date. monthOffset counts
// months from the current one and defaults to 0.
func (h *DayHandler) ListMonth(w http.ResponseWriter, r *http.Request) {
	sid, err := pathID(r, "sessionId")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	offset := 0
	if raw := r.URL.Query().Get("monthOffset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			writeError(w, r, h.Log, apperr.Invalid("monthOffset %q must be an integer", raw))
			return
		}
	}

	days, err := h.Days.ListByMonth(r.Context(), userID(r), sid, offset, h.now())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, day.ByDate(days))
}

func (h *DayHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	sid, err := pathID(r, "sessionId")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	days, err := h.Days.ListBySession(r.Context(), userID(r), sid, nil)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, day.ByDate(days))
}

func (h *DayHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDayReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.Session == uuid.Nil {
		writeError(w, r, h.Log, apperr.Invalid("session required"))
		return
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	d, err := h.Days.Create(r.Context(), userID(r), day.CreateInput{
		SessionID: req.Session,
		Date:      date,
		Scores:    req.Categories,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// Update overlays the given scores. The body is an array of
// {category, score}; categories left out keep their score.
func (h *DayHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var scores []scoring.RawScore
	if err := decode(r, &scores); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	d, err := h.Days.UpdateScore(r.Context(), userID(r), id, scores)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DayHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.Days.Delete(r.Context(), userID(r), id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
