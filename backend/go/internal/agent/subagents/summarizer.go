package subagents

import (
	"context"
	"fmt"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/models"
)

// KindSummarizer 是总结子智能体的类型名。
const KindSummarizer = "summarizer"

const defaultSummaryMaxChars = 5000

// Summarizer 对最后一个任务的结果做简短总结。
type Summarizer struct {
	agent.Base
	deps *Deps
}

func NewSummarizer(deps *Deps) *Summarizer {
	return &Summarizer{Base: deps.base(KindSummarizer), deps: deps}
}

func (a *Summarizer) Execute(ctx context.Context, in *agent.Input, emit agent.Emitter) error {
	return a.Run(ctx, in, emit, func(ctx context.Context) error {
		limit := a.deps.Config.SummaryMaxChars
		if limit <= 0 {
			limit = defaultSummaryMaxChars
		}
		data := toText(in.Param("data"))
		if len([]rune(data)) > limit {
			data = truncateRunes(data, limit) + "\n\n..."
		}
		system := fill(summarizePrompt, map[string]string{"data_summary": data, "user_query": in.Query})
		msgs := agent.HistoryMessages(system, nil, "", in.Query)

		text, err := a.Stream(ctx, msgs, fmt.Sprintf("总结【%s】", in.Query), func(chunk string) error {
			return a.Emit(&models.Event{
				Type:    models.EventSummarize,
				Name:    a.Name() + "_summarize",
				Status:  models.StatusRunning,
				Message: chunk,
			})
		})
		if err != nil {
			return err
		}
		if err := a.Emit(&models.Event{
			Type:   models.EventSummarize,
			Name:   a.Name() + "_summarize",
			Status: models.StatusCompleted,
		}); err != nil {
			return err
		}
		return a.Complete(text, "总结完成")
	})
}
