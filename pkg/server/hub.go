package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// session is one websocket client. Writes are serialized per connection.
type session struct {
	id   string
	conn *websocket.Conn

	mu sync.Mutex
}

func (s *session) send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// hub tracks open sessions.
type hub struct {
	log *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

func newHub(log *slog.Logger) *hub {
	return &hub{log: log, sessions: make(map[string]*session)}
}

func (h *hub) add(conn *websocket.Conn) *session {
	s := &session{id: uuid.NewString(), conn: conn}
	h.mu.Lock()
	h.sessions[s.id] = s
	n := len(h.sessions)
	h.mu.Unlock()
	h.log.Info("websocket session opened", "session", s.id, "sessions", n)
	return s
}

func (h *hub) remove(s *session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	n := len(h.sessions)
	h.mu.Unlock()
	s.conn.Close()
	h.log.Info("websocket session closed", "session", s.id, "sessions", n)
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// broadcast sends v to every session. A failed write closes that session's
// connection so its read loop exits and removes it.
func (h *hub) broadcast(v interface{}) {
	h.mu.RLock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.send(v); err != nil {
			h.log.Warn("websocket write failed", "session", s.id, "error", err)
			s.conn.Close()
		}
	}
}
