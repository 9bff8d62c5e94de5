package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/assistant_service/service"
	"AIAssistant/backend/go/internal/models"
)

// CloseTurnCancelled 是轮次被中断时使用的关闭码。
const CloseTurnCancelled = 4000

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ClientMessage 是 websocket 客户端发送的消息。第一条消息发起轮次，之后可以发送 cancel。
type ClientMessage struct {
	Type string `json:"type,omitempty"` // 为空或 "chat" 表示发起轮次，"cancel" 表示中断
	service.ChatRequest
}

// WebSocketHandler 在一个连接上执行一个轮次：读取请求，逐条写出 JSON 事件，轮次结束后正常关闭。
// 轮次被中断时以 CloseTurnCancelled 关闭。连接断开会中断轮次。
func (a *API) WebSocketHandler(c *gin.Context) {
	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.log.WithError(models.ErrorInfo{Message: err.Error()}).Error("websocket 升级失败")
		return
	}
	defer conn.Close()

	var first ClientMessage
	if err := conn.ReadJSON(&first); err != nil {
		a.closeWith(conn, websocket.CloseUnsupportedData, "请求格式错误")
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	userID := c.GetHeader(UserHeader)
	h, err := a.svc.StartTurn(ctx, userID, &first.ChatRequest)
	if err != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(models.NewError("request_error", err.Error()))
		a.closeWith(conn, websocket.ClosePolicyViolation, "请求被拒绝")
		return
	}
	log := a.log.WithTurn(h.ID)

	// 读协程处理 cancel 与断开
	go func() {
		defer cancel()
		conn.SetReadLimit(1 << 20)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg ClientMessage
			if json.Unmarshal(raw, &msg) == nil && msg.Type == "cancel" {
				if err := a.svc.Cancel(h.ID, userID); err != nil {
					log.Warn("取消轮次失败: " + err.Error())
				}
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-h.Events:
			if !ok {
				if errors.Is(h.Wait(), agent.ErrInterrupted) {
					a.closeWith(conn, CloseTurnCancelled, "cancelled")
					return
				}
				a.closeWith(conn, websocket.CloseNormalClosure, "")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("写入事件失败")
				cancel()
				for range h.Events {
				}
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				for range h.Events {
				}
				return
			}
		}
	}
}

func (a *API) closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
