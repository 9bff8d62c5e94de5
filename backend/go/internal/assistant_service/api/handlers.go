// Package api 把助手服务暴露为 HTTP 接口：SSE 与 websocket 两种事件流，以及取消与目录查询。
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/assistant_service/service"
	"AIAssistant/backend/go/internal/handler"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/pkg/logger"
)

// UserHeader 携带调用方的用户 ID。鉴权由网关负责。
const UserHeader = "X-User-ID"

// TurnHeader 返回本轮的 ID，客户端用它取消轮次。
const TurnHeader = "X-Turn-ID"

// CancelledEvent 是轮次被中断后 SSE 流中最后一条消息的事件名。
const CancelledEvent = "cancelled"

// HealthCheck 检查一个外部依赖。
type HealthCheck func(ctx context.Context) error

// API provides handlers for the assistant service.
type API struct {
	svc      *service.AssistantService
	handlers *handler.Registry
	agents   *agent.Registry
	catalog  *agent.Catalog
	health   map[string]HealthCheck
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// Option 配置 API。
type Option func(*API)

// WithCatalog 在目录接口中附带所有已发布的实例。
func WithCatalog(c *agent.Catalog) Option {
	return func(a *API) { a.catalog = c }
}

// WithHealthCheck 把一个依赖加入 /healthz。
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(a *API) { a.health[name] = check }
}

func WithLogger(l *logger.Logger) Option {
	return func(a *API) { a.log = l }
}

// NewAPI creates a new API handler.
func NewAPI(svc *service.AssistantService, handlers *handler.Registry, agents *agent.Registry, opts ...Option) *API {
	a := &API{
		svc:      svc,
		handlers: handlers,
		agents:   agents,
		health:   make(map[string]HealthCheck),
		log:      logger.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithComponent("assistant_api")
	return a
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTurnNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// ChatHandler 以 Server-Sent Events 输出一个轮次，每条消息是一个 JSON 事件。
func (a *API) ChatHandler(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("请求体格式错误")
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}
	h, err := a.svc.StartTurn(c.Request.Context(), c.GetHeader(UserHeader), &req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.Header(TurnHeader, h.ID)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-h.Events
		if !ok {
			// 中断的轮次没有终止事件，单独告知客户端
			if errors.Is(h.Wait(), agent.ErrInterrupted) {
				c.SSEvent(CancelledEvent, gin.H{"turn_id": h.ID, "status": models.TurnStatusCancelled})
			}
			return false
		}
		c.SSEvent("message", ev)
		return true
	})
}

// CancelHandler 中断一个进行中的轮次。
func (a *API) CancelHandler(c *gin.Context) {
	id := c.Param("id")
	if err := a.svc.Cancel(id, c.GetHeader(UserHeader)); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"turn_id": id, "status": "cancelling"})
}

// GetTurnHandler 返回轮次记录。
func (a *API) GetTurnHandler(c *gin.Context) {
	rec, err := a.svc.GetTurn(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListTurnsHandler 分页列出调用方的轮次记录。
func (a *API) ListTurnsHandler(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	recs, err := a.svc.ListTurns(c.Request.Context(), c.GetHeader(UserHeader), page, limit)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"turns": recs, "page": page})
}

type handlerInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandlersHandler 返回注册的处理器、子智能体目录，以及已发布的实例。
func (a *API) HandlersHandler(c *gin.Context) {
	services := a.handlers.Services()
	list := make([]handlerInfo, len(services))
	for i, s := range services {
		list[i] = handlerInfo{Name: s.Name, Description: s.Description}
	}
	body := gin.H{"handlers": list, "agents": a.agents.ListMetadata()}
	if a.catalog != nil {
		instances, err := a.catalog.List(c.Request.Context())
		if err != nil {
			a.log.WithError(models.ErrorInfo{Message: err.Error(), Type: "catalog"}).Warn("读取服务目录失败")
		} else {
			body["instances"] = instances
		}
	}
	c.JSON(http.StatusOK, body)
}

// HealthHandler 依次检查各依赖，有任何失败时返回 503。
func (a *API) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(a.health))
	for name := range a.health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := a.health[name](ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "active_turns": a.svc.Active(), "checks": checks})
}
