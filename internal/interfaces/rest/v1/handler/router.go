package handler

import "github.com/gin-gonic/gin"

func InitEventRouter(h *EventHandler, rg *gin.RouterGroup) {
	api := rg.Group("/api/v1")
	api.POST("/events", h.PublishEvent)
	api.POST("/resources/:resource/changes", h.ResourceChanged)
}
