package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"postpilot/internal/push"
	"postpilot/internal/sched"
	"postpilot/internal/store"
	"postpilot/pkg/logx"
)

type scheduleRequest struct {
	ItemID int64     `json:"item_id"`
	At     time.Time `json:"at"` // RFC 3339
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	err := s.sched.Schedule(r.Context(), req.ItemID, req.At)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{"item_id": req.ItemID, "scheduled_at": req.At.UTC()})
	case errors.Is(err, sched.ErrInvalidTime):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "scheduled time must be in the future"})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown content item"})
	default:
		s.log.Error("schedule request failed", logx.Int64("item_id", req.ItemID), logx.Err(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

type cancelRequest struct {
	ItemID int64 `json:"item_id"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	// Cancelling an unscheduled item is fine; report what happened either way.
	removed := s.sched.Cancel(req.ItemID)
	writeJSON(w, http.StatusOK, map[string]any{"item_id": req.ItemID, "cancelled": removed})
}

// handleStream upgrades to a WebSocket and parks the connection in the
// registry until the client goes away. Messages flow one way (server to
// client); the read loop exists to notice closes, timeouts, and errors.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "user_id is required"})
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Debug("websocket accept failed", logx.Int64("user_id", userID), logx.Err(err))
		return
	}

	conn := push.WrapWebsocket(c)
	s.reg.Connect(userID, conn)
	defer s.reg.Drop(userID, conn)

	ctx := r.Context()
	for {
		if _, _, err := c.Read(ctx); err != nil {
			s.log.Debug("stream closed", logx.Int64("user_id", userID), logx.Err(err))
			return
		}
	}
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "user_id is required"})
		return
	}
	removed := s.reg.Disconnect(userID)
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "disconnected": removed})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "user_id is required"})
		return
	}
	snap := s.sched.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":           userID,
		"connected":         s.reg.IsConnected(userID),
		"total_connections": s.reg.Count(),
		"armed_tasks":       snap.Armed,
	})
}
