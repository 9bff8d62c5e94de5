package agent

import (
	"context"
	"errors"
	"fmt"

	"AIAssistant/backend/go/internal/models"
)

var (
	// ErrInterrupted 是协作式取消的信号，任何边界都不能把它转换成错误事件。
	ErrInterrupted = errors.New("任务已被中断")
	// ErrInvalidTransition 表示子智能体的状态发生了非法迁移。
	ErrInvalidTransition = errors.New("非法的状态迁移")
	// ErrUnknownAgent 表示注册表中没有该类型的子智能体。
	ErrUnknownAgent = errors.New("未注册的子智能体")
)

// ProtocolError 表示子智能体违反了事件协议，例如没有终止事件或完成时缺少 output。
type ProtocolError struct {
	Agent  string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("子智能体 %s 违反协议: %s", e.Agent, e.Reason)
}

// Emitter 接收子智能体按顺序产生的事件。
// 返回错误表示下游不再接收，子智能体应立即停止。
type Emitter func(*models.Event) error

// LogItem 是子智能体内部日志的一条记录。
type LogItem struct {
	Title   string      `json:"title"`
	Content interface{} `json:"content"`
}

// Input 是一次子智能体执行的输入。
type Input struct {
	TurnID  string
	Query   string
	History []models.Message
	// Prompt 是可选的静态提示词，为空时由子智能体自行组装。
	Prompt  string
	Params  map[string]interface{}
	Options *models.TurnOptions
}

// Param 读取参数，不存在时返回 nil。
func (in *Input) Param(key string) interface{} {
	if in == nil || in.Params == nil {
		return nil
	}
	return in.Params[key]
}

// StringParam 读取字符串参数。
func (in *Input) StringParam(key string) string {
	s, _ := in.Param(key).(string)
	return s
}

// MapParam 读取对象参数。
func (in *Input) MapParam(key string) map[string]interface{} {
	m, _ := in.Param(key).(map[string]interface{})
	return m
}

// BoolParam 读取布尔参数，不存在时返回 def。
func (in *Input) BoolParam(key string, def bool) bool {
	if b, ok := in.Param(key).(bool); ok {
		return b
	}
	return def
}

// SubAgent 是封装一次模型调用的有状态事件生产者。
//
// Execute 按顺序通过 emit 推送事件：成功时以 completed 事件结束，失败时以 error 事件结束。
// 它只会返回 ErrInterrupted 或 emit 返回的错误，其余失败都转换为 error 事件。
// 每个实例只能执行一次。
type SubAgent interface {
	Name() string
	Execute(ctx context.Context, in *Input, emit Emitter) error
	State() State
	Result() map[string]interface{}
	Err() string
	Logs() []LogItem
	Timings() []string
}
