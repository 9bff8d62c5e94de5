package handler

import (
	"context"
	"fmt"

	"AIAssistant/backend/go/internal/agent/subagents"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/internal/task"
)

// 内置处理器的名称，与意图识别的 selected_service 对应。
const (
	NameChat   = "chat"
	NameReport = "report"
	NameAgent  = "agent"
	NameMCP    = "mcp"
)

// Chat 只有一个通用对话任务。
type Chat struct{ base }

func NewChat(*Deps) Handler { return &Chat{base{name: NameChat}} }

func (h *Chat) BuildTasks(ctx context.Context, intent *models.IntentResult, opts *models.TurnOptions) ([]*task.Task, error) {
	return []*task.Task{
		task.New("通用聊天", "通用聊天", subagents.KindGeneralChat, nil),
	}, nil
}

// Report 查询数据后生成分析报告。
type Report struct{ base }

func NewReport(*Deps) Handler { return &Report{base{name: NameReport, plan: true}} }

func (h *Report) BuildTasks(ctx context.Context, intent *models.IntentResult, opts *models.TurnOptions) ([]*task.Task, error) {
	return []*task.Task{
		task.New("获取用户数据", "查询用户信息", subagents.KindGetUsers,
			map[string]interface{}{"data_sources": dataSources(intent)}),
		task.New("数据分析", "数据分析", subagents.KindDataAnalyze,
			map[string]interface{}{"llm_response_type": string(models.ResponseReport), "intent_data": intent.ToMap()},
			task.Link{Source: "output", Target: "analyze_data"},
			task.Link{Source: "request", Target: "data_request"}),
	}, nil
}

// Agent 先获取分析助手，再按助手的配置查询并分析数据。
type Agent struct {
	base
	deps *Deps
}

func NewAgent(deps *Deps) Handler { return &Agent{base: base{name: NameAgent, plan: true}, deps: deps} }

func (h *Agent) BuildTasks(ctx context.Context, intent *models.IntentResult, opts *models.TurnOptions) ([]*task.Task, error) {
	params := map[string]interface{}{"assistant_id": intent.AssistantID}
	if intent.AssistantName != "" {
		params["assistant_name"] = intent.AssistantName
	}
	// 只给出名称时提前解析 ID，目录暂时不可用会返回错误并由调用方重试
	if intent.AssistantID == "" && intent.AssistantName != "" && h.deps.Assistants != nil {
		found, err := h.deps.Assistants.FindByName(ctx, intent.AssistantName)
		if err != nil {
			return nil, fmt.Errorf("查询助手失败: %w", err)
		}
		if found != nil {
			params["assistant_id"] = found.ID
		}
	}

	return []*task.Task{
		task.New("获取助手", "查询助手信息", subagents.KindAssistant, params),
		task.New("获取用户数据", "查询用户信息", subagents.KindGetUsers,
			map[string]interface{}{"data_sources": dataSources(intent)},
			task.Link{Source: "assistant", Target: "assistant"}),
		task.New("数据分析", "分析用户数据", subagents.KindDataAnalyze,
			map[string]interface{}{"llm_response_type": string(models.ResponseReport), "intent_data": intent.ToMap()},
			task.Link{Source: "output", Target: "analyze_data"},
			task.Link{Source: "assistant", Target: "assistant"},
			task.Link{Source: "request", Target: "data_request"}),
	}, nil
}

// Finalize 在 final 事件中附带助手与分析的输入输出。
func (h *Agent) Finalize(query string, last map[string]interface{}) *models.Event {
	ev := Finalize(query, last)
	if ev == nil {
		return nil
	}
	summary := &models.AnalysisSummary{}
	summary.Prompt, _ = last["prompt"].(string)
	summary.Response, _ = last["data"].(string)
	if as := models.AssistantFromMap(asMap(last["assistant"])); as != nil {
		summary.AssistantID = as.ID
		summary.AssistantName = as.Name
	}
	ev.Result = summary
	return ev
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// MCP 查询数据后直接流式回答，不生成计划与文件。
type MCP struct{ base }

func NewMCP(*Deps) Handler { return &MCP{base{name: NameMCP}} }

func (h *MCP) BuildTasks(ctx context.Context, intent *models.IntentResult, opts *models.TurnOptions) ([]*task.Task, error) {
	return []*task.Task{
		task.New("获取用户数据", "查询用户信息", subagents.KindGetUsers,
			map[string]interface{}{"data_sources": dataSources(intent)}),
		task.New("数据分析", "数据分析", subagents.KindDataAnalyze, nil,
			task.Link{Source: "output", Target: "analyze_data"},
			task.Link{Source: "request", Target: "data_request"}),
	}, nil
}

func (h *MCP) Prepare(opts *models.TurnOptions) {
	opts.LLMResponseType = models.ResponseStream
	opts.IsSaveFile = false
}

// Rewrite 把进度事件转为对话事件，其余事件原样输出。
func (h *MCP) Rewrite(ev *models.Event) *models.Event {
	if ev.Type == models.EventStep {
		ev.Type = models.EventChat
	}
	return ev
}

func dataSources(intent *models.IntentResult) map[string]interface{} {
	if intent.DataSources == nil {
		return map[string]interface{}{}
	}
	return intent.DataSources
}
