package subagents

import (
	"context"
	"fmt"
	"strings"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/dataquery"
	"AIAssistant/backend/go/internal/models"
)

// KindIntent 是意图识别子智能体的类型名。
const KindIntent = "intent_recognition"

// IntentRecognizer 识别用户意图，选择服务、助手与数据来源。
// 识别出数据来源时会内联运行参数提取。
type IntentRecognizer struct {
	agent.Base
	deps *Deps
}

func NewIntentRecognizer(deps *Deps) *IntentRecognizer {
	return &IntentRecognizer{Base: deps.base(KindIntent), deps: deps}
}

func (a *IntentRecognizer) Execute(ctx context.Context, in *agent.Input, emit agent.Emitter) error {
	return a.Run(ctx, in, emit, func(ctx context.Context) error { return a.run(ctx, in) })
}

func (a *IntentRecognizer) run(ctx context.Context, in *agent.Input) error {
	prompt := in.Prompt
	if prompt == "" {
		p, err := a.prompt(ctx)
		if err != nil {
			return fmt.Errorf("获取意图提示词失败: %w", err)
		}
		prompt = p
	}
	a.AddLog("组装提示词", prompt)
	a.SetResult("prompt", prompt)

	msgs := agent.HistoryMessages(prompt, in.History, "", in.Query)
	content, err := a.Invoke(ctx, msgs, fmt.Sprintf("意图识别【%s】", in.Query))
	if err != nil {
		return err
	}
	a.SetResult("response", content)

	data, ok := agent.ExtractJSONObject(content)
	if !ok {
		return a.FailWithEvent(fmt.Sprintf("JSON解析失败，原始内容: %s...", truncateRunes(content, 200)))
	}
	intent := models.IntentFromMap(data)

	if intent.Tip != "" && intent.SelectedService != "chat" {
		if err := a.SimulateStream(intent.Tip+"\n", "tip", 4); err != nil {
			return err
		}
	}
	CheckAction(in.StringParam("action"), intent)

	if len(intent.DataSources) > 0 && intent.SelectedService != "chat" {
		params, err := a.extractParameters(ctx, in, intent)
		if err != nil {
			return err
		}
		if tip, _ := params["tip"].(string); tip != "" {
			if err := a.SimulateStream(tip+"\n", "tip", 4); err != nil {
				return err
			}
		}
		if ds, ok := params["data_sources"].(map[string]interface{}); ok && len(ds) > 0 {
			intent.DataSources = ds
		}
	}
	if len(intent.DataSources) > 0 {
		intent.DoNext = true
	}

	out := intent.ToMap()
	a.AddLog("输出返回的结果", out)
	return a.Complete(out, "意图识别完成")
}

// extractParameters 内联运行参数提取，失败时返回空结果而不是错误。
func (a *IntentRecognizer) extractParameters(ctx context.Context, in *agent.Input, intent *models.IntentResult) (map[string]interface{}, error) {
	next := "正在制定任务计划"
	if intent.SelectedService == "agent" || intent.SelectedService == "report" {
		next = "正在获取数据"
	}
	sources, _ := marshalIndent(intent.DataSources)
	prompt := fill(parametersPrompt, map[string]string{
		"data_sources": sources,
		"catalog":      dataquery.Describe(),
		"next_step":    next,
		"current_time": nowString(a.deps.now()),
	})

	extractor := NewParameterExtractor(a.deps)
	var output map[string]interface{}
	err := extractor.Execute(ctx, &agent.Input{
		TurnID:  in.TurnID,
		Query:   in.Query,
		Prompt:  prompt,
		Options: in.Options,
	}, func(ev *models.Event) error {
		if ev.Type == models.EventCompleted && ev.Status == models.StatusCompleted {
			output, _ = ev.Output.(map[string]interface{})
		}
		return nil
	})
	for _, mark := range extractor.Timings() {
		a.AddTiming(mark)
	}
	if err != nil {
		return nil, err
	}
	return output, nil
}

func (a *IntentRecognizer) prompt(ctx context.Context) (string, error) {
	var services strings.Builder
	if a.deps.Services != nil {
		for _, s := range a.deps.Services() {
			fmt.Fprintf(&services, "- %s: %s\n", s.Name, s.Description)
		}
	}

	var assistants strings.Builder
	if a.deps.Assistants != nil {
		list, err := a.deps.Assistants.List(ctx)
		if err != nil {
			return "", err
		}
		for _, as := range list {
			fmt.Fprintf(&assistants, "- ID: %s，名称: %s，描述: %s\n", as.ID, as.Name, as.Description)
		}
	}
	if assistants.Len() == 0 {
		assistants.WriteString("无\n")
	}

	return fill(intentPrompt, map[string]string{
		"services":     services.String(),
		"assistants":   assistants.String(),
		"data_sources": dataquery.Describe(),
		"current_time": nowString(a.deps.now()),
	}), nil
}

// CheckAction 根据调用方指定的动作修正选中的服务：
// 动作 agent 时 mcp 改为 report；动作 chat 时 agent 与 report 改为 mcp。
func CheckAction(action string, intent *models.IntentResult) {
	if intent == nil || intent.SelectedService == "" {
		return
	}
	switch {
	case action == "agent" && intent.SelectedService == "mcp":
		intent.SelectedService = "report"
	case action == "chat" && (intent.SelectedService == "agent" || intent.SelectedService == "report"):
		intent.SelectedService = "mcp"
	}
}

// KindExtractParameters 是参数提取子智能体的类型名。
const KindExtractParameters = "extract_parameters"

// ParameterExtractor 按给定提示词提取结构化参数。
// 解析失败时仍以 completed 结束，但状态为 error。
type ParameterExtractor struct {
	agent.Base
	deps *Deps
}

func NewParameterExtractor(deps *Deps) *ParameterExtractor {
	return &ParameterExtractor{Base: deps.base(KindExtractParameters), deps: deps}
}

func (a *ParameterExtractor) Execute(ctx context.Context, in *agent.Input, emit agent.Emitter) error {
	return a.Run(ctx, in, emit, func(ctx context.Context) error {
		a.AddLog("提示词", in.Prompt)
		msgs := agent.HistoryMessages(in.Prompt, nil, "", in.Query)
		content, err := a.Invoke(ctx, msgs, fmt.Sprintf("提取参数【%s】", in.Query))
		if err != nil {
			return err
		}
		data, ok := agent.ExtractJSONObject(content)
		a.AddLog("执行完成,输出数据", data)
		if !ok {
			return a.Finish(content, &models.Event{Status: models.StatusError, Message: "参数提取失败", Result: content})
		}
		return a.Finish(data, &models.Event{Message: "参数提取完成", Result: content})
	})
}
