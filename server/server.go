package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/wfunc/tabletop/config"
	"github.com/wfunc/tabletop/logger"
	"github.com/wfunc/tabletop/monitor"
	"github.com/wfunc/tabletop/room"
	"github.com/wfunc/tabletop/services"
	"github.com/wfunc/tabletop/session"
)

type Server struct {
	cfg            config.ServerConfig
	sendBuffer     int
	registry       *room.Registry
	sessionManager *session.Manager
	roomService    *services.RoomService
	metrics        *monitor.Metrics
	upgrader       websocket.Upgrader
	httpServer     *http.Server
	draining       atomic.Bool
}

func New(cfg config.ServerConfig, sendBuffer int, registry *room.Registry, sessions *session.Manager,
	roomService *services.RoomService, metrics *monitor.Metrics) *Server {
	if cfg.WSPath == "" {
		cfg.WSPath = "/vtt"
	}
	s := &Server{
		cfg:            cfg,
		sendBuffer:     sendBuffer,
		registry:       registry,
		sessionManager: sessions,
		roomService:    roomService,
		metrics:        metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
	}
	s.httpServer = &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the full HTTP surface: control-plane API, health, metrics
// and the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", s.handleCreateRoom)
		r.Get("/", s.handleListRooms)
		r.Delete("/{roomID}", s.handleDeleteRoom)
		r.Get("/{roomID}/sessions", s.handleRoomSessions)
	})

	r.Get(s.cfg.WSPath, s.handleWebSocket)
	r.Get(s.cfg.WSPath+"/*", s.handleWebSocket)

	return s.guardUpgrades(r)
}

// guardUpgrades drops WebSocket upgrade attempts outside the WebSocket path
// without answering the handshake.
func (s *Server) guardUpgrades(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) && !s.isWSPath(r.URL.Path) {
			logger.Log.Debugw("rejecting upgrade outside websocket path", "path", r.URL.Path, "remote", r.RemoteAddr)
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isWSPath(path string) bool {
	return path == s.cfg.WSPath || strings.HasPrefix(path, s.cfg.WSPath+"/")
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	logger.Log.Infof("HTTP server listening on %s (websocket path %s)", s.cfg.HTTPAddress, s.cfg.WSPath)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting work, flushes and closes every room, then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	s.registry.Shutdown(ctx)
	// 房间已关闭，剩下的是还没加入房间的握手连接
	s.sessionManager.CloseAll(websocket.CloseGoingAway, "server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
