package websocket

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
)

const maxInboundMessageSize = 512

// WebSocketHandler serves the same topic subscriptions as the SSE endpoint
// over a WebSocket, for clients that cannot use EventSource.
type WebSocketHandler struct {
	hub      *hub.Hub
	logger   logger.Logger
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hubInstance *hub.Hub, logger logger.Logger, allowedOrigin string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hubInstance,
		logger: logger.WithField("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// Connect upgrades GET /ws?topics=a,b and streams matching events as JSON text
// messages until either side closes.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	topics, err := hub.ParseTopics(c.Query("topics"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.hub.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote an error response
		h.logger.Warnf("failed to upgrade connection from %s: %v", c.ClientIP(), err)
		return
	}

	cfg := h.hub.Config()
	conn := h.hub.NewConnection(hub.TransportWebSocket, topics, hub.NewWebSocketStream(ws, cfg.WriteTimeout))
	if err := h.hub.Attach(conn); err != nil {
		if !errors.Is(err, hub.ErrHubNotRunning) {
			h.logger.Errorf("failed to attach connection %s: %v", conn.ID(), err)
		}
		<-conn.Closed()
		return
	}

	go h.readPump(ws, conn, 2*cfg.HeartbeatInterval)

	select {
	case <-c.Request.Context().Done():
		conn.Close(nil)
	case <-conn.Done():
	}
	<-conn.Closed()
	h.logger.Infof("websocket connection %s finished", conn.ID())
}

// readPump consumes inbound frames so control messages are processed. Pongs
// extend the read deadline; any read error ends the connection.
func (h *WebSocketHandler) readPump(ws *websocket.Conn, conn *hub.Connection, pongWait time.Duration) {
	defer conn.Close(nil)

	ws.SetReadLimit(maxInboundMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debugf("websocket %s read error: %v", conn.ID(), err)
			}
			return
		}
	}
}
