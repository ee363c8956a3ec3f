package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bidhall/internal/domain"
	"bidhall/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var timeNow = time.Now

// Session is one live websocket connection. Outbound messages go
// through a buffered channel drained by the write pump, so enqueueing
// never blocks a broadcaster; a full buffer drops the message for this
// session only.
type Session struct {
	id       string
	identity *domain.Identity // nil for anonymous viewers
	conn     *websocket.Conn
	out      chan []byte
	done     chan struct{}
	once     sync.Once
	log      logger.Logger
}

func newSession(id string, identity *domain.Identity, conn *websocket.Conn, buffer int, log logger.Logger) *Session {
	if buffer <= 0 {
		buffer = 64
	}
	return &Session{
		id:       id,
		identity: identity,
		conn:     conn,
		out:      make(chan []byte, buffer),
		done:     make(chan struct{}),
		log:      log,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Identity() *domain.Identity { return s.identity }

// Enqueue hands data to the write pump. Returns false when the session
// is gone or its buffer is full.
func (s *Session) Enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- data:
		return true
	default:
		return false
	}
}

func (s *Session) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.conn.Close()
}

// writePump serializes all writes to the connection and keeps it alive
// through proxies with periodic pings. Runs until Close or a write
// failure.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case data := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("session write failed", "session_id", s.id, "error", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
