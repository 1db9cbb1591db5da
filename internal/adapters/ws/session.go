package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds a single websocket write.
const writeWait = 10 * time.Second

// ConnSession wraps a gorilla connection as a hub Session. Writes are
// serialized under a mutex and guarded by a write deadline so one stuck
// client cannot wedge a broadcast.
type ConnSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewConnSession wraps an upgraded websocket connection.
func NewConnSession(conn *websocket.Conn) *ConnSession {
	return &ConnSession{conn: conn}
}

// Send writes a text message to the client.
func (s *ConnSession) Send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, message)
}

// Close closes the underlying connection.
func (s *ConnSession) Close() error {
	return s.conn.Close()
}

// Drain reads and discards client frames until the connection errors.
// Client messages carry no meaning on the feed; the read loop only exists
// to detect disconnect.
func (s *ConnSession) Drain() error {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return err
		}
	}
}
