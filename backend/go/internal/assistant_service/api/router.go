package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"AIAssistant/backend/go/pkg/logger"
)

// NewRouter 创建 gin 引擎并注册所有路由。
func NewRouter(mode string, api *API, log *logger.Logger) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	RegisterRoutes(router, api)
	return router
}

// RegisterRoutes registers all the routes for the assistant service.
func RegisterRoutes(router *gin.Engine, api *API) {
	v1 := router.Group("/api/v1/assistant")
	{
		v1.POST("/chat", api.ChatHandler)
		v1.GET("/handlers", api.HandlersHandler)
		v1.GET("/turns", api.ListTurnsHandler)
		v1.GET("/turns/:id", api.GetTurnHandler)
		v1.POST("/turns/:id/cancel", api.CancelHandler)
	}

	router.GET("/ws/assistant", api.WebSocketHandler)
	router.GET("/healthz", api.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
