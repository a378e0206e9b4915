package hub

import (
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// WebSocketStream writes events as JSON text messages and heartbeats as pings.
type WebSocketStream struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

var _ Stream = (*WebSocketStream)(nil)

func NewWebSocketStream(conn *websocket.Conn, writeTimeout time.Duration) *WebSocketStream {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &WebSocketStream{conn: conn, writeTimeout: writeTimeout}
}

func (s *WebSocketStream) WriteFrame(f Frame) error {
	deadline := time.Now().Add(s.writeTimeout)
	if f.IsHeartbeat() {
		return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
	}

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteJSON(f.Event())
}

// Close sends a normal close frame and closes the socket, which also ends the
// reader goroutine.
func (s *WebSocketStream) Close() error {
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod),
	)
	return s.conn.Close()
}
