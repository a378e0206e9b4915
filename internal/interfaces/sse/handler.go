package sse

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
)

// retryHint tells EventSource clients how long to wait before reconnecting.
const retryHint = 3000

type ServerSentEventHandler struct {
	hub    *hub.Hub
	logger logger.Logger
}

func NewServerSentEventHandler(hubInstance *hub.Hub, logger logger.Logger) *ServerSentEventHandler {
	return &ServerSentEventHandler{
		hub:    hubInstance,
		logger: logger.WithField("handler", "sse"),
	}
}

// Connect serves GET /events?topics=a,b and holds the response open until the
// client goes away, the connection is dropped, or the hub shuts down.
func (h *ServerSentEventHandler) Connect(c *gin.Context) {
	topics, err := hub.ParseTopics(c.Query("topics"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.hub.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		return
	}

	stream, err := hub.NewSSEStream(c.Writer, h.hub.Config().WriteTimeout)
	if err != nil {
		h.logger.Errorf("cannot stream to %s: %v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	conn := h.hub.NewConnection(hub.TransportSSE, topics, stream)
	hello := sse.Event{
		Event: "connected",
		Retry: retryHint,
		Data: gin.H{
			"connection_id": conn.ID(),
			"topics":        topics.List(),
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := stream.Open(hello); err != nil {
		h.logger.Warnf("client %s went away before the stream opened: %v", c.ClientIP(), err)
		conn.Close(nil)
		return
	}

	// Headers are already sent, so failures from here on can only end the stream.
	if err := h.hub.Attach(conn); err != nil {
		if !errors.Is(err, hub.ErrHubNotRunning) {
			h.logger.Errorf("failed to attach connection %s: %v", conn.ID(), err)
		}
		<-conn.Closed()
		return
	}

	select {
	case <-c.Request.Context().Done():
		conn.Close(nil)
	case <-conn.Done():
	}

	// The writer must be finished with the ResponseWriter before we return.
	<-conn.Closed()
	h.logger.Infof("sse connection %s finished (%s)", conn.ID(), closeReason(conn.Err()))
}

// GetConnections lists every registered connection.
func (h *ServerSentEventHandler) GetConnections(c *gin.Context) {
	connections := h.hub.Connections()
	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connections),
		"connections":       connections,
		"hub_running":       h.hub.IsRunning(),
	})
}

func closeReason(err error) string {
	if err == nil {
		return "client disconnected"
	}
	return err.Error()
}
