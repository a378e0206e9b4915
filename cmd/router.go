package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-event-hub/internal/infrastructure/config"
	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
	"go-event-hub/internal/interfaces/middleware"
	"go-event-hub/internal/interfaces/rest/v1/handler"
	"go-event-hub/internal/interfaces/sse"
	"go-event-hub/internal/interfaces/websocket"
	"go-event-hub/internal/port/inbound"
)

func InitRouter(
	cfg *config.Config,
	hubInstance *hub.Hub,
	events inbound.EventUseCase,
	registry *prometheus.Registry,
	log logger.Logger,
) http.Handler {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.HTTP.AllowedOrigin))

	rootGroup := router.Group("")

	rootGroup.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	rootGroup.GET("/hub/status", func(c *gin.Context) {
		isRunning := hubInstance.IsRunning()
		status := "healthy"
		if !isRunning {
			status = "stopped"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      status,
			"hub_running": isRunning,
			"connections": hubInstance.ConnectionCount(),
		})
	})

	rootGroup.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		Registry: registry,
	})))

	limiter := middleware.NewConnectionLimiter(
		cfg.Limits.MaxConnections,
		cfg.Limits.ConnectRate,
		cfg.Limits.ConnectBurst,
	)
	guard := limiter.Middleware()

	sse.InitSSERouter(log, hubInstance, rootGroup, guard)
	websocket.InitWebSocketRouter(log, hubInstance, rootGroup, cfg.HTTP.AllowedOrigin, guard)
	handler.InitEventRouter(handler.NewEventHandler(hubInstance, events, log), rootGroup)

	return router
}
