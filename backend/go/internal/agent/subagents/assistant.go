package subagents

import (
	"context"
	"fmt"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/models"
)

// KindAssistant 是获取助手子智能体的类型名。
const KindAssistant = "assistant"

// AssistantAgent 按 ID 或名称查找分析助手。
type AssistantAgent struct {
	agent.Base
	deps *Deps
}

func NewAssistantAgent(deps *Deps) *AssistantAgent {
	return &AssistantAgent{Base: deps.base(KindAssistant), deps: deps}
}

func (a *AssistantAgent) Execute(ctx context.Context, in *agent.Input, emit agent.Emitter) error {
	return a.Run(ctx, in, emit, func(ctx context.Context) error { return a.run(ctx, in) })
}

func (a *AssistantAgent) run(ctx context.Context, in *agent.Input) error {
	if a.deps.Assistants == nil {
		return fmt.Errorf("未配置助手目录")
	}
	id := in.StringParam("assistant_id")
	if n, ok := parseInt64(in.Param("assistant_id")); ok && id == "" {
		id = fmt.Sprint(n)
	}
	name := in.StringParam("assistant_name")

	var found *models.Assistant
	var err error
	if id != "" {
		if found, err = a.deps.Assistants.Get(ctx, id); err != nil {
			return err
		}
	}
	if found == nil && name != "" {
		if found, err = a.deps.Assistants.FindByName(ctx, name); err != nil {
			return err
		}
	}

	if found == nil {
		list, err := a.deps.Assistants.List(ctx)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(list))
		for _, as := range list {
			names = append(names, as.Name)
		}
		answer := fmt.Sprintf("助手不存在，请选择以下助手%v", names)
		a.AddLog("执行失败", "未找到助手")
		system := fill(errorPrompt, map[string]string{"error_message": answer, "user_query": in.Query})
		if _, err := a.ChatStream(ctx, in, system, models.StatusError); err != nil {
			return err
		}
		return a.FailWithEvent("未找到助手")
	}

	view := found.ToMap()
	a.SetResult("assistant", view)
	a.AddLog("获取助手信息", view)
	output := fmt.Sprintf("助手信息：%s\n 助手描述：%s", found.Name, found.Description)
	return a.Finish(output, &models.Event{
		Message: fmt.Sprintf("获取[%s]助手信息", found.Name),
		Output:  view,
	})
}
