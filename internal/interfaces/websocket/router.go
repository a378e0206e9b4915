package websocket

import (
	"github.com/gin-gonic/gin"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
)

func InitWebSocketRouter(
	logger logger.Logger,
	hubInstance *hub.Hub,
	rg *gin.RouterGroup,
	allowedOrigin string,
	guards ...gin.HandlerFunc,
) {
	wsHandler := NewWebSocketHandler(hubInstance, logger, allowedOrigin)

	handlers := append([]gin.HandlerFunc{}, guards...)
	rg.GET("/ws", append(handlers, wsHandler.Connect)...)
}
