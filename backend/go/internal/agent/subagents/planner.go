package subagents

import (
	"context"
	"fmt"
	"strings"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/models"
)

// KindPlanner 是任务计划子智能体的类型名。
const KindPlanner = "planner"

// Planner 根据任务列表流式生成任务计划。参数 tasks 是任务描述列表。
type Planner struct {
	agent.Base
	deps *Deps
}

func NewPlanner(deps *Deps) *Planner {
	return &Planner{Base: deps.base(KindPlanner), deps: deps}
}

func (a *Planner) Execute(ctx context.Context, in *agent.Input, emit agent.Emitter) error {
	return a.Run(ctx, in, emit, func(ctx context.Context) error {
		system := fill(planPrompt, map[string]string{
			"task_info":  describeTasks(in.Param("tasks")),
			"user_query": in.Query,
		})
		a.AddLog("任务计划提示词", system)
		msgs := agent.HistoryMessages(system, in.History, "", in.Query)
		text, err := a.Stream(ctx, msgs, fmt.Sprintf("任务计划【%s】", in.Query), func(chunk string) error {
			return a.Emit(&models.Event{
				Type:    models.EventPlan,
				Name:    a.Name() + "_plan",
				Status:  models.StatusRunning,
				Message: chunk,
			})
		})
		if err != nil {
			return err
		}
		return a.Complete(text, "任务计划完成")
	})
}

func describeTasks(v interface{}) string {
	list, ok := v.([]map[string]interface{})
	if !ok {
		return toText(v)
	}
	var sb strings.Builder
	for i, t := range list {
		fmt.Fprintf(&sb, "%d. %v：%v\n", i+1, t["name"], t["description"])
	}
	return sb.String()
}
