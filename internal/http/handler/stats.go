package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"

	"tally/internal/calendar"
	"tally/internal/dashboard"
	"tally/internal/stats"
)

type StatsHandler struct {
	Stats      *stats.Service
	Dashboards *dashboard.Service
	Log        hclog.Logger
}

func (h *StatsHandler) Day(w http.ResponseWriter, r *http.Request) {
	sid, err := pathID(r, "sessionId")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	date, err := calendar.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	rep, err := h.Stats.Day(r.Context(), userID(r), sid, date)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sid, err := pathID(r, "sessionId")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	d, err := h.Dashboards.Get(r.Context(), userID(r), sid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
