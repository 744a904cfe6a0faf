package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/tabletop/logger"
	"github.com/wfunc/tabletop/monitor"
	"github.com/wfunc/tabletop/network"
	"github.com/wfunc/tabletop/session"
)

const joinTimeout = 10 * time.Second

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	userID := r.URL.Query().Get("userId")

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	if roomID == "" || userID == "" {
		msg := websocket.FormatCloseMessage(network.CloseMissingParams, "roomId and userId are required")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		ws.Close()
		return
	}
	if s.draining.Load() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		ws.Close()
		return
	}

	conn := network.NewWSConnection(ws, s.sendBuffer)
	s.handleConnection(conn, roomID, userID)
}

func (s *Server) handleConnection(conn *network.WSConnection, roomID, userID string) {
	sess := session.NewSession(conn, roomID, userID)
	s.sessionManager.Add(sess)
	s.metrics.ConnectionOpened()

	defer func() {
		s.sessionManager.Remove(sess.ID)
		s.metrics.ConnectionClosed()
		conn.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	rm, role, err := s.registry.Connect(ctx, roomID, sess)
	cancel()
	if err != nil {
		logger.Log.Errorw("join room failed", "room", roomID, "user", userID, "error", err)
		conn.CloseWith(websocket.CloseInternalServerErr, "join failed")
		return
	}
	sess.SetRole(role)
	logger.Log.Infow("connection opened", "room", roomID, "user", userID, "role", role,
		"session", sess.ID, "remote", conn.RemoteAddr().String())

	err = conn.Serve(func(data []byte) {
		sess.Touch()
		ev, err := network.ParseEvent(data)
		if err != nil {
			reason := monitor.DropMalformed
			if errors.Is(err, network.ErrUnknownEvent) {
				reason = monitor.DropUnknown
			}
			s.metrics.EventDropped(reason)
			logger.Log.Debugw("dropping frame", "room", roomID, "user", userID, "error", err)
			return
		}
		s.metrics.EventReceived(ev.EventType())
		rm.Handle(sess, ev)
	})

	rm.Leave(sess)
	logger.Log.Infow("connection closed", "room", roomID, "user", userID, "role", sess.Role(),
		"session", sess.ID, "idle", time.Since(sess.LastActive()).Round(time.Millisecond), "error", err)
}
