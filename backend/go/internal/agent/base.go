package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"AIAssistant/backend/go/internal/llm"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/pkg/logger"
	"AIAssistant/backend/go/pkg/metrics"
	"AIAssistant/backend/go/pkg/tracing"
)

// QueryPrefix 是追加在历史消息之后的当前用户问题前缀。
const QueryPrefix = "用户提问："

// Base 是所有子智能体共享的脚手架：状态机、取消检查、模型调用与日志。
// 具体的子智能体嵌入 Base 并在 Run 中实现自己的逻辑。
type Base struct {
	name string
	LLM  llm.LLM
	Log  *logger.Logger
	// Temperature 不为空时覆盖模型的默认温度
	Temperature *float32

	mu      sync.Mutex
	state   State
	result  map[string]interface{}
	err     string
	logs    []LogItem
	timings []string
	opts    *models.TurnOptions
	emit    Emitter
}

// NewBase 创建处于 INIT 状态的脚手架。
func NewBase(name string, model llm.LLM, log *logger.Logger) Base {
	if log == nil {
		log = logger.Nop()
	}
	return Base{
		name:   name,
		LLM:    model,
		Log:    log.WithComponent(name),
		result: make(map[string]interface{}),
	}
}

func (b *Base) Name() string { return b.name }

func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Result 返回结果的浅拷贝。
func (b *Base) Result() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]interface{}, len(b.result))
	for k, v := range b.result {
		out[k] = v
	}
	return out
}

func (b *Base) Err() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *Base) Logs() []LogItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]LogItem(nil), b.logs...)
}

func (b *Base) Timings() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.timings...)
}

// Options 返回本次执行的轮次配置。
func (b *Base) Options() *models.TurnOptions {
	return b.opts
}

func (b *Base) transition(to State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !canTransition(b.state, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, b.name, b.state, to)
	}
	b.state = to
	return nil
}

// SetResult 写入一项结果。
func (b *Base) SetResult(key string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result[key] = value
}

// AddLog 追加一条内部日志。
func (b *Base) AddLog(title string, content interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = append(b.logs, LogItem{Title: title, Content: content})
}

// AddTiming 追加一条耗时记录。
func (b *Base) AddTiming(mark string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timings = append(b.timings, mark)
}

// CheckInterruption 询问中断检查器，被中断时返回 ErrInterrupted。
func (b *Base) CheckInterruption() error {
	if b.opts.Interrupted() {
		return ErrInterrupted
	}
	return nil
}

// Emit 推送一个事件，Name 为空时使用子智能体名称。
func (b *Base) Emit(ev *models.Event) error {
	if ev.Name == "" {
		ev.Name = b.name
	}
	if err := b.emit(ev); err != nil {
		return &emitError{err: err}
	}
	return nil
}

// Complete 记录 output 并推送 completed 事件。output 为 nil 属于协议违规。
func (b *Base) Complete(output interface{}, message string) error {
	return b.Finish(output, &models.Event{Message: message})
}

// Finish 是 Complete 的通用形式：ev 的 Status 与 Output 为空时分别使用 completed 与 output。
func (b *Base) Finish(output interface{}, ev *models.Event) error {
	if output == nil {
		return &ProtocolError{Agent: b.name, Reason: "完成时缺少 output"}
	}
	b.SetResult("output", output)
	ev.Type = models.EventCompleted
	if ev.Name == "" {
		ev.Name = b.name + "_completed"
	}
	if ev.Status == "" {
		ev.Status = models.StatusCompleted
	}
	if ev.Output == nil {
		ev.Output = output
	}
	if err := b.Emit(ev); err != nil {
		return err
	}
	return b.transition(StateCompleted)
}

// Fail 记录失败原因。事件由调用方决定是否推送。
func (b *Base) Fail(msg string) {
	b.mu.Lock()
	b.err = msg
	b.mu.Unlock()
	_ = b.transition(StateFailed)
}

// FailWithEvent 推送 error 事件并进入 FAILED。
func (b *Base) FailWithEvent(msg string) error {
	err := b.Emit(models.NewError(b.name+"_error", msg))
	b.Fail(msg)
	return err
}

// emitError 标记来自下游的错误，它们必须原样返回而不是转换为 error 事件。
type emitError struct{ err error }

func (e *emitError) Error() string { return e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }

// Run 是子智能体 Execute 的公共外壳：
// 进入 RUNNING，执行 body，把普通错误和 panic 转换为 error 事件，
// 取消信号与下游错误原样返回。
func (b *Base) Run(ctx context.Context, in *Input, emit Emitter, body func(ctx context.Context) error) (err error) {
	if err := b.transition(StateRunning); err != nil {
		return err
	}
	b.opts = in.Options
	if b.opts == nil {
		def := models.DefaultTurnOptions()
		b.opts = &def
	}
	b.emit = emit
	if in.TurnID != "" {
		b.Log = b.Log.WithTurn(in.TurnID)
	}

	ctx, span := tracing.StartSpan(ctx, "assistant.agent", attribute.String("agent.name", b.name))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			b.Log.WithError(models.ErrorInfo{Message: fmt.Sprint(r), Type: "panic", Stack: string(debug.Stack())}).Error("子智能体执行异常")
			err = b.handleError(fmt.Errorf("%v", r))
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err = body(ctx); err != nil {
		return b.handleError(err)
	}
	return nil
}

func (b *Base) handleError(err error) error {
	if errors.Is(err, ErrInterrupted) {
		_ = b.transition(StateCancelled)
		return ErrInterrupted
	}
	var ee *emitError
	if errors.As(err, &ee) {
		b.Fail(ee.err.Error())
		return ee.err
	}
	msg := err.Error()
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		msg = fmt.Sprintf("execute error: %s", msg)
	}
	b.AddLog("系统执行失败", msg)
	b.Log.WithError(models.ErrorInfo{Message: msg, Type: "agent_error"}).Error("子智能体执行失败")
	if b.State().Terminal() {
		return nil
	}
	if emitErr := b.Emit(models.NewError(b.name+"_error", msg)); emitErr != nil {
		return b.handleError(emitErr)
	}
	b.Fail(msg)
	return nil
}

// HistoryMessages 组装发送给模型的消息：
// 系统提示词（如有），历史消息，与内容不同的当前问题（带前缀），最后是内容本身。
func HistoryMessages(system string, history []models.Message, query, content string) []models.Message {
	msgs := make([]models.Message, 0, len(history)+3)
	if system != "" {
		msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: system})
	}
	for _, m := range history {
		if !models.ValidRole(m.Role) {
			continue
		}
		msgs = append(msgs, m)
	}
	if query != "" && strings.TrimSpace(query) != strings.TrimSpace(content) {
		msgs = append(msgs, models.Message{Role: models.RoleUser, Content: QueryPrefix + query})
	}
	msgs = append(msgs, models.Message{Role: models.RoleUser, Content: content})
	return msgs
}

// Invoke 一次性调用模型。调用前检查中断。
func (b *Base) Invoke(ctx context.Context, msgs []models.Message, label string) (string, error) {
	if err := b.CheckInterruption(); err != nil {
		return "", err
	}
	if b.LLM == nil {
		return "", errors.New("未配置模型客户端")
	}
	ctx, span := tracing.StartSpan(ctx, "assistant.llm", attribute.String("llm.mode", "invoke"), attribute.String("llm.label", label))
	defer span.End()

	start := time.Now()
	resp, err := b.LLM.GenerateContent(ctx, &models.GenerateContentRequest{Messages: msgs, Temperature: b.Temperature})
	metrics.Default().ObserveLLMCall("invoke", err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("模型调用失败: %w", err)
	}
	b.AddTiming(fmt.Sprintf("%s 耗时: %s", label, time.Since(start).Round(time.Millisecond)))
	return resp.Content, nil
}

// Stream 流式调用模型，每个分片交给 onChunk。
// 调用前和每个分片交付前都会检查中断；提前返回时会取消底层流。
func (b *Base) Stream(ctx context.Context, msgs []models.Message, label string, onChunk func(string) error) (string, error) {
	if err := b.CheckInterruption(); err != nil {
		return "", err
	}
	if b.LLM == nil {
		return "", errors.New("未配置模型客户端")
	}
	ctx, span := tracing.StartSpan(ctx, "assistant.llm", attribute.String("llm.mode", "stream"), attribute.String("llm.label", label))
	defer span.End()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	ch, err := b.LLM.GenerateContentStream(ctx, &models.GenerateContentRequest{Messages: msgs, Temperature: b.Temperature})
	if err != nil {
		metrics.Default().ObserveLLMCall("stream", err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("模型调用失败: %w", err)
	}

	var sb strings.Builder
	for resp := range ch {
		if resp.Err != nil {
			metrics.Default().ObserveLLMCall("stream", resp.Err)
			return sb.String(), fmt.Errorf("模型流式输出中断: %w", resp.Err)
		}
		if err := b.CheckInterruption(); err != nil {
			return sb.String(), err
		}
		sb.WriteString(resp.Content)
		if err := onChunk(resp.Content); err != nil {
			return sb.String(), err
		}
	}
	// 上下文取消时模型端直接关闭通道，已收到的内容不完整
	if ctx.Err() != nil {
		span.SetStatus(codes.Error, "cancelled")
		return sb.String(), ErrInterrupted
	}
	metrics.Default().ObserveLLMCall("stream", nil)
	b.AddTiming(fmt.Sprintf("%s 耗时: %s", label, time.Since(start).Round(time.Millisecond)))
	return sb.String(), nil
}

// ChatStream 用给定的系统提示词流式回答当前问题，每个分片作为 chat 事件推送。
func (b *Base) ChatStream(ctx context.Context, in *Input, system string, status models.EventStatus) (string, error) {
	msgs := HistoryMessages(system, in.History, "", in.Query)
	return b.Stream(ctx, msgs, b.name+" 对话", func(chunk string) error {
		return b.Emit(&models.Event{
			Type:    models.EventChat,
			Name:    fmt.Sprintf("%s_%s_chat", b.name, status),
			Status:  status,
			Message: chunk,
		})
	})
}

// SimulateStream 把一段已有文本按字符分片，以 chat 事件推送。
func (b *Base) SimulateStream(text, suffix string, size int) error {
	if size <= 0 {
		size = 4
	}
	runes := []rune(text)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		if err := b.CheckInterruption(); err != nil {
			return err
		}
		if err := b.Emit(&models.Event{
			Type:    models.EventChat,
			Name:    b.name + "_" + suffix,
			Status:  models.StatusRunning,
			Message: string(runes[i:end]),
		}); err != nil {
			return err
		}
	}
	return nil
}
