// Package handler 定义意图处理器：每个处理器把一种服务翻译成任务流水线。
package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/agent/subagents"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/internal/task"
	"AIAssistant/backend/go/pkg/retry"
)

// ErrUnknownHandler 表示没有注册该名称的处理器。
var ErrUnknownHandler = errors.New("未注册的意图处理器")

// Handler 把意图识别结果翻译为任务列表，并决定事件的对外形式。
type Handler interface {
	Name() string
	// BuildTasks 构建任务列表，可以访问外部依赖，失败时由调用方重试
	BuildTasks(ctx context.Context, intent *models.IntentResult, opts *models.TurnOptions) ([]*task.Task, error)
	IsPlan() bool
	Rewrite(ev *models.Event) *models.Event
	// Finalize 返回最终的 final 事件，没有时返回 nil
	Finalize(query string, last map[string]interface{}) *models.Event
	// Prepare 在执行前修改本轮的配置
	Prepare(opts *models.TurnOptions)
}

// Deps 是处理器共享的依赖。
type Deps struct {
	Assistants subagents.AssistantDirectory
}

// Constructor 创建一个处理器实例。
type Constructor func(deps *Deps) Handler

// Registry 按服务名保存处理器的构造函数。
type Registry struct {
	mu    sync.RWMutex
	deps  *Deps
	ctors map[string]Constructor
	descs map[string]string
}

func NewRegistry(deps *Deps) *Registry {
	if deps == nil {
		deps = &Deps{}
	}
	return &Registry{deps: deps, ctors: make(map[string]Constructor), descs: make(map[string]string)}
}

// NewDefaultRegistry 注册内置的 chat、report、agent 与 mcp 处理器。
func NewDefaultRegistry(deps *Deps) *Registry {
	r := NewRegistry(deps)
	r.Register(NameChat, "通用对话，直接回答用户问题", NewChat)
	r.Register(NameReport, "查询用户数据并生成分析报告", NewReport)
	r.Register(NameAgent, "使用指定的分析助手查询并分析用户数据", NewAgent)
	r.Register(NameMCP, "查询用户数据并直接流式回答", NewMCP)
	return r
}

// Register 注册处理器，同名注册会覆盖旧值。
func (r *Registry) Register(name, description string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
	r.descs[name] = description
}

// Lookup 创建一个处理器实例。
func (r *Registry) Lookup(name string) (Handler, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, name)
	}
	return ctor(r.deps), nil
}

// Names 返回已注册的处理器名称，按字母排序。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Services 返回处理器名称与描述，供意图识别提示词使用。
func (r *Registry) Services() []subagents.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]subagents.Service, 0, len(r.descs))
	for n, d := range r.descs {
		out = append(out, subagents.Service{Name: n, Description: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RewriteEvent 把内部事件转换为对外的事件类型，重复应用结果不变：
//
//	plan -> md_info
//	chat(error) 与 summarize(running) -> step[completion]
//	summarize(completed) -> step[success]
//	file -> step[execute]
func RewriteEvent(ev *models.Event) *models.Event {
	switch {
	case ev.Type == models.EventPlan:
		ev.Type = models.EventMDInfo
	case ev.Type == models.EventChat && ev.Status == models.StatusError,
		ev.Type == models.EventSummarize && ev.Status == models.StatusRunning:
		ev.Type = models.EventStep
		ev.TypeName = models.StepCompletion
	case ev.Type == models.EventSummarize && ev.Status == models.StatusCompleted:
		ev.Type = models.EventStep
		ev.TypeName = models.StepSuccess
	case ev.Type == models.EventFile:
		ev.Type = models.EventStep
		ev.TypeName = models.StepExecute
	}
	return ev
}

// Finalize 在最后的结果中有文件时返回 final 事件。
func Finalize(query string, last map[string]interface{}) *models.Event {
	fd, ok := last["file"].(*models.FileDescriptor)
	if !ok || fd == nil {
		return nil
	}
	return &models.Event{
		Type:    models.EventFinal,
		Status:  models.StatusSuccess,
		Message: query,
		File:    fd,
	}
}

// Retry 以 2^attempt 秒的间隔执行 fn，最多 attempts 次。取消信号不会重试。
// sleep 为空时真实等待。
func Retry(ctx context.Context, attempts int, sleep func(context.Context, time.Duration) error, fn func(context.Context) error) error {
	return retry.Do(ctx, retry.Config{
		Attempts:  attempts,
		BaseDelay: time.Second,
		Retryable: func(err error) bool { return !errors.Is(err, agent.ErrInterrupted) },
		Sleep:     sleep,
	}, fn)
}

// base 提供处理器的默认行为。
type base struct {
	name string
	plan bool
}

func (b base) Name() string                           { return b.name }
func (b base) IsPlan() bool                           { return b.plan }
func (b base) Rewrite(ev *models.Event) *models.Event { return RewriteEvent(ev) }
func (b base) Prepare(opts *models.TurnOptions)       {}
func (b base) Finalize(query string, last map[string]interface{}) *models.Event {
	return Finalize(query, last)
}
