package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/pkg/logger"
)

// requestLogger 在请求结束后记录一条结构化日志。流式请求的耗时包含整个轮次。
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithRequest(models.RequestInfo{
			Method:     c.Request.Method,
			Path:       c.FullPath(),
			RemoteAddr: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		}).WithPayload(map[string]interface{}{
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"turn_id":  c.Writer.Header().Get(TurnHeader),
		})
		msg := fmt.Sprintf("%s %s %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
		if c.Writer.Status() >= 500 {
			entry.Error(msg)
			return
		}
		entry.Info(msg)
	}
}
