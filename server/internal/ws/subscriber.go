package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

// subscriber is one connected dashboard.
type subscriber struct {
	conn       *websocket.Conn
	department string // empty for all departments
	send       chan []byte

	// seen is the ID of the last snapshot queued for this subscriber. It is
	// written before add and afterwards only by Hub.push.
	seen string
}

func newSubscriber(conn *websocket.Conn, department string) *subscriber {
	return &subscriber{
		conn:       conn,
		department: department,
		send:       make(chan []byte, sendBufSize),
	}
}

// offer queues data without blocking and reports whether it fit.
func (s *subscriber) offer(data []byte) bool {
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// writeLoop forwards queued messages and pings. A closed send channel ends
// the session with a close frame.
func (s *subscriber) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames so pongs and close frames are processed.
// It returns when the peer goes away or stops answering pings.
func (s *subscriber) readLoop() {
	defer s.conn.Close()
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
