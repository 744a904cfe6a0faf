package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/tabletop/network"
)

// Session 一个 WebSocket 连接，生命周期内绑定到固定的 (roomID, userID)
type Session struct {
	ID        string
	Conn      network.Connection
	RoomID    string
	CreatedAt time.Time

	userID     string
	role       string
	lastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(conn network.Connection, roomID, userID string) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.NewString(),
		Conn:       conn,
		RoomID:     roomID,
		userID:     userID,
		CreatedAt:  now,
		lastActive: now,
	}
}

func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) Send(data []byte) error {
	return s.Conn.Send(data)
}

func (s *Session) CloseWith(code int, reason string) {
	s.Conn.CloseWith(code, reason)
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Touch records inbound activity.
func (s *Session) Touch() {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// SetRole records the role resolved when the session joined its room.
func (s *Session) SetRole(role string) {
	s.mutex.Lock()
	s.role = role
	s.mutex.Unlock()
}

// Role is empty until the join completed.
func (s *Session) Role() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.role
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) GetByRoom(roomID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.RoomID == roomID {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session with code. Sessions remove themselves when their read loop ends.
func (m *Manager) CloseAll(code int, reason string) int {
	m.mutex.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mutex.RUnlock()

	for _, s := range sessions {
		s.CloseWith(code, reason)
	}
	return len(sessions)
}
