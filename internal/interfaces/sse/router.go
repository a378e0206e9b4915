package sse

import (
	"github.com/gin-gonic/gin"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
)

func InitSSERouter(logger logger.Logger, hubInstance *hub.Hub, rg *gin.RouterGroup, guards ...gin.HandlerFunc) {
	sseHandler := NewServerSentEventHandler(hubInstance, logger)

	handlers := append([]gin.HandlerFunc{}, guards...)
	rg.GET("/events", append(handlers, sseHandler.Connect)...)

	apiGroup := rg.Group("/api/v1/events")
	apiGroup.GET("/connections", sseHandler.GetConnections)
}
