// Package orchestrator 是每个对话轮次的入口：识别意图，选择处理器，驱动任务流水线并输出事件流。
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/agent/subagents"
	"AIAssistant/backend/go/internal/cache"
	"AIAssistant/backend/go/internal/handler"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/internal/task"
	"AIAssistant/backend/go/pkg/logger"
	"AIAssistant/backend/go/pkg/metrics"
	"AIAssistant/backend/go/pkg/tracing"
)

// Turn 是一次对话轮次的输入。
type Turn struct {
	ID      string
	UserID  string
	Query   string
	History []models.Message
	// Action 是调用方指定的服务，用于修正意图识别的结果
	Action  string
	Options *models.TurnOptions
}

// Orchestrator 组合子智能体注册表、处理器注册表与可选的轮次缓存。
type Orchestrator struct {
	agents   *agent.Registry
	handlers *handler.Registry
	cache    cache.Cache
	log      *logger.Logger
	sleep    func(context.Context, time.Duration) error
}

// Option 配置 Orchestrator。
type Option func(*Orchestrator)

// WithCache 启用轮次缓存。
func WithCache(c cache.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithRetrySleep 替换构建任务重试时的等待函数。
func WithRetrySleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

func New(agents *agent.Registry, handlers *handler.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{agents: agents, handlers: handlers}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	o.log = o.log.WithComponent("orchestrator")
	return o
}

// AutoOrchestrate 在后台执行一个轮次并立即返回事件流。
//
// 事件流总是以一个终止事件（final、completed 或 error）结束；被取消时不再输出任何事件，
// Err 返回 agent.ErrInterrupted。
func (o *Orchestrator) AutoOrchestrate(ctx context.Context, turn *Turn) *EventStream {
	s := newEventStream()
	if turn.Options == nil {
		def := models.DefaultTurnOptions()
		turn.Options = &def
	}
	go func() {
		defer close(s.ch)
		s.handler, s.err = o.serve(ctx, turn, s.ch)
	}()
	return s
}

// serve 处理缓存，然后运行轮次。
func (o *Orchestrator) serve(ctx context.Context, turn *Turn, ch chan<- *models.Event) (string, error) {
	log := o.log.WithTurn(turn.ID)
	send := func(ev *models.Event) error {
		if turn.Options.Interrupted() {
			return agent.ErrInterrupted
		}
		select {
		case ch <- ev:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", agent.ErrInterrupted, ctx.Err())
		}
	}

	useCache := o.cache != nil && turn.Options.IsCacheRequest
	var key string
	if useCache {
		k, err := Fingerprint(turn)
		if err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error(), Type: "cache_error"}).Warn("计算缓存键失败")
			useCache = false
		}
		key = k
	}
	if useCache {
		events, hit := o.replay(ctx, key)
		metrics.Default().ObserveCache("turn", hit)
		if hit {
			log.WithPayload(map[string]interface{}{"events": len(events)}).Info("命中轮次缓存")
			for _, ev := range events {
				if err := send(ev); err != nil {
					metrics.Default().ObserveTurn("cache", "cancelled")
					return "cache", err
				}
			}
			metrics.Default().ObserveTurn("cache", "replayed")
			return "cache", nil
		}
	}

	var recorded []*models.Event
	var last models.EventType
	emit := func(ev *models.Event) error {
		if err := send(ev); err != nil {
			return err
		}
		last = ev.Type
		if useCache {
			recorded = append(recorded, ev)
		}
		return nil
	}

	name, err := o.run(ctx, turn, emit, log)
	result := "success"
	switch {
	case errors.Is(err, agent.ErrInterrupted):
		result = "cancelled"
		log.Info("轮次已被中断")
	case err != nil:
		result = "failed"
	case last == models.EventError:
		result = "failed"
	}
	metrics.Default().ObserveTurn(name, result)
	if err == nil && useCache {
		o.store(ctx, key, recorded, turn.Options.CacheTTL)
	}
	return name, err
}

// run 执行轮次，返回选中的处理器名称。取消信号与发送失败原样返回，其余错误转为 error 事件。
func (o *Orchestrator) run(ctx context.Context, turn *Turn, emit agent.Emitter, log *logger.Logger) (name string, err error) {
	name = "unknown"
	ctx, span := tracing.StartSpan(ctx, "assistant.turn", attribute.String("turn.id", turn.ID), attribute.String("turn.action", turn.Action))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.WithError(models.ErrorInfo{Message: fmt.Sprint(r), Type: "panic", Stack: string(debug.Stack())}).Error("轮次执行异常")
			err = emit(models.NewError("orchestrator_error", fmt.Sprintf("系统异常: %v", r)))
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var held *models.Event
	forward := func(rewrite func(*models.Event) *models.Event) agent.Emitter {
		return func(ev *models.Event) error {
			// 子智能体的完成事件只保留最后一个，在轮次结束时输出
			if ev.Type == models.EventCompleted {
				held = ev
				return nil
			}
			if rewrite != nil {
				ev = rewrite(ev)
			}
			return emit(ev)
		}
	}

	recognizer, err := o.agents.New(subagents.KindIntent)
	if err != nil {
		return name, emit(models.NewError("orchestrator_error", err.Error()))
	}
	// 识别失败时的 error 事件是终止事件，推迟到日志之后输出
	var heldError *models.Event
	toStream := forward(nil)
	err = recognizer.Execute(ctx, &agent.Input{
		TurnID:  turn.ID,
		Query:   turn.Query,
		History: turn.History,
		Params:  map[string]interface{}{"action": turn.Action},
		Options: turn.Options,
	}, func(ev *models.Event) error {
		if ev.Type == models.EventError {
			heldError = ev
			return nil
		}
		return toStream(ev)
	})
	if err != nil {
		return name, err
	}
	if err := emit(models.NewLog("意图识别", recognizer.Logs())); err != nil {
		return name, err
	}
	switch recognizer.State() {
	case agent.StateCompleted:
	case agent.StateCancelled:
		return name, agent.ErrInterrupted
	default:
		if heldError == nil {
			heldError = models.NewError("orchestrator_error", "意图识别失败")
		}
		return name, emit(heldError)
	}
	held = nil

	output, _ := recognizer.Result()["output"].(map[string]interface{})
	intent := models.IntentFromMap(output)
	if intent == nil || intent.SelectedService == "" {
		return name, emit(models.NewError("orchestrator_error", "意图识别结果为空或格式不正确"))
	}
	name = intent.SelectedService
	span.SetAttributes(attribute.String("turn.handler", name))

	h, err := o.handlers.Lookup(name)
	if err != nil {
		log.WithPayload(map[string]interface{}{"handler": name}).Warn("未找到意图处理器")
		return name, emit(models.NewError("orchestrator_error", "未找到意图处理器: "+name))
	}

	opts := *turn.Options
	h.Prepare(&opts)

	var tasks []*task.Task
	err = handler.Retry(ctx, opts.Retries(), o.sleep, func(ctx context.Context) error {
		if turn.Options.Interrupted() {
			return agent.ErrInterrupted
		}
		var err error
		tasks, err = h.BuildTasks(ctx, intent, &opts)
		return err
	})
	if err != nil {
		if errors.Is(err, agent.ErrInterrupted) {
			return name, agent.ErrInterrupted
		}
		return name, emit(models.NewError(h.Name()+"_error", fmt.Sprintf("构建任务失败: %v", err)))
	}
	log.WithPayload(map[string]interface{}{"handler": name, "tasks": len(tasks)}).Info("开始执行意图处理器")

	mgr := task.NewManager(o.agents, log, tasks...)
	mgr.IsPlan = h.IsPlan()
	outcome, err := mgr.Run(ctx, task.RunInput{
		TurnID:  turn.ID,
		Query:   turn.Query,
		History: turn.History,
		Options: &opts,
	}, forward(h.Rewrite))
	if err != nil {
		return name, err
	}
	if outcome.Failed {
		return name, nil
	}

	if err := emit(models.NewLog("bebug信息", outcome.Debug)); err != nil {
		return name, err
	}
	if final := h.Finalize(turn.Query, outcome.LastResult); final != nil {
		return name, emit(final)
	}
	if held == nil {
		held = &models.Event{Type: models.EventCompleted, Name: name + "_completed", Status: models.StatusCompleted, Message: "任务完成"}
	}
	return name, emit(held)
}
