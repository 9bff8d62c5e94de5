package subagents

import (
	"context"
	"fmt"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/models"
)

// KindGeneralChat 是通用对话子智能体的类型名。
const KindGeneralChat = "general_chat"

// GeneralChat 直接回答用户问题。
type GeneralChat struct {
	agent.Base
	deps *Deps
}

func NewGeneralChat(deps *Deps) *GeneralChat {
	return &GeneralChat{Base: deps.base(KindGeneralChat), deps: deps}
}

func (a *GeneralChat) Execute(ctx context.Context, in *agent.Input, emit agent.Emitter) error {
	return a.Run(ctx, in, emit, func(ctx context.Context) error {
		system := in.Prompt
		if system == "" {
			system = chatPrompt
		}
		mode := models.ResponseMode(in.StringParam("llm_response_type"))
		if mode == "" {
			mode = a.Options().LLMResponseType
		}

		var text string
		var err error
		if mode == models.ResponseStream {
			text, err = a.ChatStream(ctx, in, system, models.StatusRunning)
			if err != nil {
				return err
			}
		} else {
			msgs := agent.HistoryMessages(system, in.History, "", in.Query)
			text, err = a.Invoke(ctx, msgs, fmt.Sprintf("AI对话【%s】", in.Query))
			if err != nil {
				return err
			}
			if err := a.Emit(&models.Event{
				Type:    models.EventChat,
				Name:    a.Name() + "_chat",
				Status:  models.StatusRunning,
				Message: text,
			}); err != nil {
				return err
			}
		}
		a.SetResult("data", text)
		return a.Complete(text, "AI对话完成")
	})
}
