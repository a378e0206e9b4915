package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
	"go-event-hub/internal/port/inbound"
)

// Broadcaster publishes and reports the stamped event.
type Broadcaster interface {
	Broadcast(topic string, payload any) (hub.Event, error)
	ConnectionCount() int
}

type EventHandler struct {
	broadcaster Broadcaster
	events      inbound.EventUseCase
	logger      logger.Logger
}

type PublishEventRequest struct {
	Topic   string          `json:"topic"   binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

type ResourceChangeRequest struct {
	Action inbound.ChangeAction `json:"action" binding:"required,oneof=created updated deleted"`
	ID     string               `json:"id"     binding:"required"`
	Data   json.RawMessage      `json:"data"`
}

func NewEventHandler(broadcaster Broadcaster, events inbound.EventUseCase, logger logger.Logger) *EventHandler {
	return &EventHandler{
		broadcaster: broadcaster,
		events:      events,
		logger:      logger.WithField("handler", "events"),
	}
}

// PublishEvent handles POST /api/v1/events.
func (h *EventHandler) PublishEvent(c *gin.Context) {
	var req PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event format"})
		return
	}

	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}

	event, err := h.broadcaster.Broadcast(req.Topic, payload)
	if err != nil {
		h.logger.Warnf("rejected event on %q: %v", req.Topic, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":      "published",
		"id":          event.ID,
		"topic":       event.Topic,
		"connections": h.broadcaster.ConnectionCount(),
	})
}

// ResourceChanged handles POST /api/v1/resources/:resource/changes.
func (h *EventHandler) ResourceChanged(c *gin.Context) {
	resource := c.Param("resource")
	if err := hub.ValidateTopic(resource); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req ResourceChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid change format"})
		return
	}

	var data any
	if len(req.Data) > 0 {
		data = req.Data
	}
	h.events.ResourceChanged(resource, req.Action, req.ID, data)

	c.JSON(http.StatusAccepted, gin.H{
		"status":   "published",
		"resource": resource,
		"action":   req.Action,
	})
}
