package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"meetprep/internal/ics"
	appLog "meetprep/internal/log"
	"meetprep/internal/model"
	"meetprep/internal/session"
)

const maxBodyBytes = 1 << 20

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/connect", s.handleConnect)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("DELETE /api/error", s.handleDismissError)

	s.mux.HandleFunc("GET /api/meetings/{id}", s.handleMeeting)
	s.mux.HandleFunc("POST /api/meetings/{id}/select", s.handleSelect)
	s.mux.HandleFunc("PUT /api/meetings/{id}/notes", s.handleNotes)
	s.mux.HandleFunc("POST /api/meetings/{id}/checklist", s.handleAddItem)
	s.mux.HandleFunc("POST /api/meetings/{id}/checklist/{item}/toggle", s.handleToggleItem)
	s.mux.HandleFunc("DELETE /api/meetings/{id}/checklist/{item}", s.handleRemoveItem)
	s.mux.HandleFunc("GET /api/meetings/{id}/join", s.handleJoin)

	s.mux.HandleFunc("GET /api/meetings.ics", s.handleExport)
	s.mux.HandleFunc("GET /api/occurrences", s.handleOccurrences)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toStateResponse(s.store.Snapshot()))
}

// handleConnect blocks for the handshake. A failed handshake is reported
// as 502 with the user-facing message also stored in the state.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Connect(r.Context()); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(s.store.Snapshot()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Refresh(r.Context()); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(s.store.Snapshot()))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.Disconnect(); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(s.store.Snapshot()))
}

func (s *Server) handleDismissError(w http.ResponseWriter, _ *http.Request) {
	s.store.DismissError()
	writeJSON(w, http.StatusOK, toStateResponse(s.store.Snapshot()))
}

func (s *Server) handleMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	s.writeMeeting(w, http.StatusOK, id)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	if err := s.store.Select(id); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(s.store.Snapshot()))
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var req notesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.SetPrepNotes(id, req.Notes); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeMeeting(w, http.StatusOK, id)
}

type addItemRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := s.store.AddChecklistItem(id, req.Text)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathInt(w, r, "item")
	if !ok {
		return
	}
	item, err := s.store.ToggleChecklistItem(id, itemID)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathInt(w, r, "item")
	if !ok {
		return
	}
	if err := s.store.RemoveChecklistItem(id, itemID); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeMeeting(w, http.StatusOK, id)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	url, err := s.store.Join(id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	appLog.Info("join requested", "meeting_id", id)
	writeJSON(w, http.StatusOK, joinResponse{URL: url})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="meetings.ics"`)
	opts := ics.ExportOptions{Name: "Meetings", Now: s.store.Now()}
	if err := ics.WriteCalendar(w, s.store.Meetings(), opts); err != nil {
		appLog.Error("ics export failed", err)
	}
}

// handleOccurrences expands the meetings into concrete instances.
//
// GET /api/occurrences?days=7&backfill=1
//   - days:     how many days ahead of now to include (default 7)
//   - backfill: how many days before now to include (default 1)
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 7)
	if days <= 0 {
		days = 7
	}
	backfill := parseIntDefault(q.Get("backfill"), 1)
	if backfill < 0 {
		backfill = 0
	}

	now := s.store.Now()
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	meetings := s.store.Meetings()
	occ, err := ics.ExpandOccurrences(meetings, ics.ExpandConfig{RangeStart: rangeStart, RangeEnd: rangeEnd})
	if err != nil {
		appLog.Error("api occurrences: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand meetings")
		return
	}

	subjects := make(map[int]string, len(meetings))
	for _, m := range meetings {
		subjects[m.ID] = m.Subject
	}
	dtos := make([]occurrenceDTO, 0, len(occ))
	for _, o := range occ {
		dtos = append(dtos, occurrenceDTO{MeetingID: o.MeetingID, Subject: subjects[o.MeetingID], Start: o.Start, End: o.End})
	}
	writeJSON(w, http.StatusOK, occurrencesResponse{Occurrences: dtos, RangeStart: rangeStart, RangeEnd: rangeEnd})
}

func (s *Server) writeMeeting(w http.ResponseWriter, status int, id int) {
	m, err := s.store.Meeting(id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, status, toMeetingDTO(m, s.store.Now()))
}

// writeSessionError maps store errors onto HTTP statuses.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNoMeetingLink):
		writeError(w, http.StatusNotFound, "No online meeting link available")
	case errors.Is(err, session.ErrMeetingNotFound), errors.Is(err, session.ErrChecklistItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNotConnected), errors.Is(err, session.ErrAlreadyConnected):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrEmptyItemText):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		// Connect/refresh failures: the store already holds the message
		// meant for the user.
		msg := s.store.Snapshot().Error
		if msg == "" {
			msg = err.Error()
		}
		writeError(w, http.StatusBadGateway, msg)
	}
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
