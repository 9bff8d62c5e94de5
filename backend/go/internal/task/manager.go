package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/agent/subagents"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/pkg/logger"
	"AIAssistant/backend/go/pkg/metrics"
	"AIAssistant/backend/go/pkg/tracing"
)

// RunInput 是一次任务流水线执行的输入。
type RunInput struct {
	TurnID  string
	Query   string
	History []models.Message
	Options *models.TurnOptions
}

// Outcome 是流水线执行完成后的汇总。
type Outcome struct {
	// Failed 表示流水线以 error 事件结束
	Failed     bool
	LastResult map[string]interface{}
	Debug      []string
}

// Manager 按顺序驱动一个轮次中的任务。
// IsPlan 为 true 且任务多于一个时先生成任务计划，全部成功后对最后的结果做总结。
type Manager struct {
	Tasks  []*Task
	IsPlan bool

	registry   *agent.Registry
	log        *logger.Logger
	lastResult map[string]interface{}
	debug      []string
}

// NewManager 创建任务管理器，子智能体从 registry 中按类型创建。
func NewManager(registry *agent.Registry, log *logger.Logger, tasks ...*Task) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		Tasks:      tasks,
		registry:   registry,
		log:        log.WithComponent("task_manager"),
		lastResult: map[string]interface{}{},
	}
}

// Run 执行所有任务，事件按顺序交给 emit，每个事件都标记了所属任务。
//
// 子智能体的 error 事件不会透传，任务失败时统一以一个 error 事件结束流水线。
// 只有取消信号与 emit 返回的错误会作为 error 返回，其余失败体现在 Outcome.Failed 中。
func (m *Manager) Run(ctx context.Context, in RunInput, emit agent.Emitter) (*Outcome, error) {
	if in.Options == nil {
		def := models.DefaultTurnOptions()
		in.Options = &def
	}
	log := m.log
	if in.TurnID != "" {
		log = log.WithTurn(in.TurnID)
	}
	if err := Validate(m.Tasks); err != nil {
		if emitErr := emit(models.NewError("task_manager_error", err.Error())); emitErr != nil {
			return nil, emitErr
		}
		return m.outcome(true), nil
	}
	log.WithPayload(map[string]interface{}{"tasks": len(m.Tasks), "is_plan": m.IsPlan}).Info("开始执行任务")

	// 只有一个任务时不输出计划
	var steps []string
	if m.IsPlan && len(m.Tasks) != 1 {
		s, err := m.plan(ctx, in, emit)
		if err != nil {
			return nil, err
		}
		steps = s
	}

	// 计划模式下，最后一个任务的文件事件在总结之后推送
	var deferred []*models.Event
	for i, t := range m.Tasks {
		params := t.ResolveParams(m.lastResult)

		if m.IsPlan {
			title := fmt.Sprintf("%s, 开始%s", t.Name, t.Description)
			if i < len(steps) && steps[i] != "" {
				title = steps[i]
			}
			if err := emit(&models.Event{
				Type:     models.EventStep,
				TypeName: models.StepTitle,
				Message:  title,
				Task:     t.Name,
			}); err != nil {
				return nil, err
			}
		}

		if in.Options.Interrupted() {
			return nil, agent.ErrInterrupted
		}

		holdFiles := m.IsPlan && i == len(m.Tasks)-1
		failure, err := m.runTask(ctx, t, in, params, emit, func(ev *models.Event) bool {
			if holdFiles && ev.Type == models.EventFile {
				deferred = append(deferred, ev)
				return true
			}
			return false
		})
		if err != nil {
			return nil, err
		}
		if failure != "" {
			log.WithPayload(map[string]interface{}{"task": t.Name, "error": failure}).Warn("任务失败，停止执行")
			if err := emit(&models.Event{
				Type:       models.EventError,
				Status:     models.StatusFailed,
				Message:    fmt.Sprintf(" %s 任务失败:%s", t.Name, failure),
				FailedTask: t.Name,
				Error:      failure,
				Task:       t.Name,
			}); err != nil {
				return nil, err
			}
			return m.outcome(true), nil
		}
	}

	if m.IsPlan && len(m.Tasks) > 0 {
		if err := m.summarize(ctx, in, emit); err != nil {
			return nil, err
		}
	}
	for _, ev := range deferred {
		if err := emit(ev); err != nil {
			return nil, err
		}
	}
	log.Info("所有任务执行完成")
	return m.outcome(false), nil
}

func (m *Manager) outcome(failed bool) *Outcome {
	return &Outcome{Failed: failed, LastResult: m.lastResult, Debug: m.debug}
}

// runTask 执行一个任务。返回非空的 failure 表示任务失败。
// hold 返回 true 的事件由调用方接管，不会立即推送。
func (m *Manager) runTask(ctx context.Context, t *Task, in RunInput, params map[string]interface{}, emit agent.Emitter, hold func(*models.Event) bool) (failure string, err error) {
	sub, err := m.registry.New(t.Kind)
	if err != nil {
		return err.Error(), nil
	}

	ctx, span := tracing.StartSpan(ctx, "assistant.task",
		attribute.String("task.name", t.Name), attribute.String("task.kind", t.Kind))
	defer span.End()
	start := time.Now()

	var heldError *models.Event
	terminated := false
	err = sub.Execute(ctx, &agent.Input{
		TurnID:  in.TurnID,
		Query:   in.Query,
		History: in.History,
		Params:  params,
		Options: in.Options,
	}, func(ev *models.Event) error {
		switch ev.Type {
		case models.EventError:
			heldError = ev
			terminated = true
			return nil
		case models.EventCompleted:
			terminated = true
		}
		ev.Task = t.Name
		if hold(ev) {
			return nil
		}
		return emit(ev)
	})
	state := sub.State()
	metrics.Default().ObserveTask(t.Kind, state.String(), time.Since(start))
	if err != nil {
		if errors.Is(err, agent.ErrInterrupted) {
			span.SetStatus(codes.Error, "interrupted")
			return "", agent.ErrInterrupted
		}
		return "", err
	}

	if err := emit(&models.Event{Type: models.EventLog, Title: t.Name, Content: sub.Logs(), Task: t.Name}); err != nil {
		return "", err
	}

	switch state {
	case agent.StateCompleted:
		result := sub.Result()
		if !terminated || result["output"] == nil {
			pe := &agent.ProtocolError{Agent: sub.Name(), Reason: "完成时缺少终止事件或 output"}
			span.SetStatus(codes.Error, pe.Error())
			return pe.Error(), nil
		}
		m.lastResult = result
		m.debug = append(m.debug, sub.Timings()...)
		return "", nil
	case agent.StateFailed:
		msg := sub.Err()
		if msg == "" && heldError != nil {
			msg = heldError.Message
		}
		if msg == "" {
			msg = "未知错误"
		}
		span.SetStatus(codes.Error, msg)
		return msg, nil
	case agent.StateCancelled:
		return "", agent.ErrInterrupted
	default:
		pe := &agent.ProtocolError{Agent: sub.Name(), Reason: fmt.Sprintf("结束时处于 %s 状态", state)}
		span.SetStatus(codes.Error, pe.Error())
		return pe.Error(), nil
	}
}

// plan 运行任务计划子智能体，转发它的 plan 事件并提取步骤标题。
// 计划失败不影响任务执行。
func (m *Manager) plan(ctx context.Context, in RunInput, emit agent.Emitter) ([]string, error) {
	prompts := make([]map[string]interface{}, len(m.Tasks))
	for i, t := range m.Tasks {
		prompts[i] = t.Prompt()
	}
	planner, err := m.registry.New(subagents.KindPlanner)
	if err != nil {
		return nil, emit(&models.Event{Type: models.EventPlan, Message: "获取任务计划失败: " + err.Error()})
	}
	err = planner.Execute(ctx, &agent.Input{
		TurnID:  in.TurnID,
		Query:   in.Query,
		Params:  map[string]interface{}{"tasks": prompts},
		Options: in.Options,
	}, func(ev *models.Event) error {
		if ev.Type != models.EventPlan {
			return nil
		}
		return emit(ev)
	})
	if err != nil {
		return nil, err
	}
	if planner.State() != agent.StateCompleted {
		return nil, emit(&models.Event{Type: models.EventPlan, Message: "获取任务计划失败: " + planner.Err()})
	}
	text, _ := planner.Result()["output"].(string)
	steps := ExtractSteps(text)
	m.debug = append(m.debug, planner.Timings()...)
	return steps, nil
}

// summarize 对最后一个任务的结果做总结，只转发 summarize 事件。
func (m *Manager) summarize(ctx context.Context, in RunInput, emit agent.Emitter) error {
	data := m.lastResult["output"]
	if empty(data) {
		data = m.lastResult["data"]
	}
	if empty(data) {
		return nil
	}
	summarizer, err := m.registry.New(subagents.KindSummarizer)
	if err != nil {
		return emit(&models.Event{Type: models.EventSummarize, Status: models.StatusError, Message: "总结失败: " + err.Error()})
	}
	err = summarizer.Execute(ctx, &agent.Input{
		TurnID:  in.TurnID,
		Query:   in.Query,
		Params:  map[string]interface{}{"data": data},
		Options: in.Options,
	}, func(ev *models.Event) error {
		if ev.Type != models.EventSummarize {
			return nil
		}
		return emit(ev)
	})
	if err != nil {
		return err
	}
	if summarizer.State() == agent.StateFailed {
		return emit(&models.Event{Type: models.EventSummarize, Status: models.StatusError, Message: "总结失败: " + summarizer.Err()})
	}
	m.debug = append(m.debug, summarizer.Timings()...)
	return nil
}

func empty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []interface{}:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]interface{}:
		return len(x) == 0
	}
	return false
}
