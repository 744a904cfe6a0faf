package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wfunc/tabletop/logger"
	"github.com/wfunc/tabletop/services"
)

type createRoomRequest struct {
	Name     string `json:"name"`
	GMUserID string `json:"gmUserId"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, services.ErrInvalidRequest)
		return
	}

	room, err := s.roomService.Create(r.Context(), req.Name, req.GMUserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.roomService.List(r.Context(), r.URL.Query().Get("gmUserId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.roomService.Delete(r.Context(), chi.URLParam(r, "roomID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionView struct {
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	Role        string    `json:"role"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastActive  time.Time `json:"lastActive"`
}

// handleRoomSessions lists the live connections of one room on this instance.
func (s *Server) handleRoomSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessionManager.GetByRoom(chi.URLParam(r, "roomID"))
	out := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionView{
			SessionID:   sess.ID,
			UserID:      sess.UserID(),
			Role:        sess.Role(),
			ConnectedAt: sess.CreatedAt,
			LastActive:  sess.LastActive(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms":         s.registry.Len(),
		"connections":   s.sessionManager.Count(),
		"uptimeSeconds": int64(s.metrics.Uptime().Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnw("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrRoomNotFound):
		status = http.StatusNotFound
	default:
		logger.Log.Errorw("control plane request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
