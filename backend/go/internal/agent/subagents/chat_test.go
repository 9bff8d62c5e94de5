package subagents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/llm/llmtest"
	"AIAssistant/backend/go/internal/models"
)

func TestPlanner(t *testing.T) {
	model := &llmtest.Scripted{Default: "1. 获取数据 2. 分析", ChunkSize: 5}
	a := NewPlanner(newDeps(model))
	rec := &collector{}

	in := input("分析张三", map[string]interface{}{"tasks": []map[string]interface{}{
		{"name": "get_users", "description": "获取用户数据"},
		{"name": "data_analyze", "description": "分析数据"},
	}})
	require.NoError(t, a.Execute(context.Background(), in, rec.emit))

	plans := rec.ofType(models.EventPlan)
	require.Len(t, plans, 3)
	assert.Equal(t, "planner_plan", plans[0].Name)
	assert.Equal(t, "1. 获取数据 2. 分析", rec.text(models.EventPlan))
	assert.Contains(t, llmtest.SystemPrompt(model.Requests()[0]), "2. data_analyze：分析数据")
	assert.Equal(t, "任务计划完成", rec.last().Message)
}

func TestSummarizer(t *testing.T) {
	model := &llmtest.Scripted{Default: "总结内容"}
	deps := newDeps(model)
	deps.Config.SummaryMaxChars = 10
	a := NewSummarizer(deps)
	rec := &collector{}

	require.NoError(t, a.Execute(context.Background(), input("q", map[string]interface{}{"data": strings.Repeat("数", 20)}), rec.emit))

	system := llmtest.SystemPrompt(model.Requests()[0])
	assert.Contains(t, system, strings.Repeat("数", 10)+"\n\n...")
	assert.NotContains(t, system, strings.Repeat("数", 11))

	sums := rec.ofType(models.EventSummarize)
	require.Len(t, sums, 2)
	assert.Equal(t, models.StatusRunning, sums[0].Status)
	assert.Equal(t, "总结内容", sums[0].Message)
	assert.Equal(t, models.StatusCompleted, sums[1].Status)
	assert.Empty(t, sums[1].Message)

	ev := rec.last()
	assert.Equal(t, models.EventCompleted, ev.Type)
	assert.Equal(t, "总结完成", ev.Message)
}

func TestGeneralChat(t *testing.T) {
	t.Run("流式", func(t *testing.T) {
		model := &llmtest.Scripted{Default: "你好呀朋友"}
		a := NewGeneralChat(newDeps(model))
		rec := &collector{}
		in := input("你好", nil)
		in.Options.LLMResponseType = models.ResponseStream
		in.History = []models.Message{{Role: models.RoleUser, Content: "上一轮"}, {Role: models.RoleAssistant, Content: "回答"}}

		require.NoError(t, a.Execute(context.Background(), in, rec.emit))
		assert.Len(t, rec.ofType(models.EventChat), 2)
		assert.Equal(t, "general_chat_running_chat", rec.ofType(models.EventChat)[0].Name)
		assert.Equal(t, "你好呀朋友", a.Result()["data"])
		assert.Len(t, model.Requests()[0].Messages, 4)
	})

	t.Run("一次性", func(t *testing.T) {
		a := NewGeneralChat(newDeps(&llmtest.Scripted{Default: "你好呀朋友"}))
		rec := &collector{}
		require.NoError(t, a.Execute(context.Background(), input("你好", nil), rec.emit))
		chats := rec.ofType(models.EventChat)
		require.Len(t, chats, 1)
		assert.Equal(t, "你好呀朋友", chats[0].Message)
		assert.Equal(t, "AI对话完成", rec.last().Message)
	})

	t.Run("模型失败", func(t *testing.T) {
		a := NewGeneralChat(newDeps(&llmtest.Scripted{Respond: func(*models.GenerateContentRequest) (string, error) {
			return "", llmtest.ErrScripted
		}}))
		rec := &collector{}
		require.NoError(t, a.Execute(context.Background(), input("你好", nil), rec.emit))
		assert.Equal(t, agent.StateFailed, a.State())
		ev := rec.last()
		assert.Equal(t, "general_chat_error", ev.Name)
		assert.True(t, strings.HasPrefix(ev.Message, "execute error: "))
	})
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry(newDeps(&llmtest.Scripted{}))
	for _, kind := range []string{KindIntent, KindExtractParameters, KindAssistant, KindGetUsers, KindDataAnalyze, KindPlanner, KindSummarizer, KindGeneralChat} {
		assert.True(t, reg.Has(kind), kind)
	}
	a1, err := reg.New(KindGeneralChat)
	require.NoError(t, err)
	a2, err := reg.New(KindGeneralChat)
	require.NoError(t, err)
	assert.NotSame(t, a1, a2)
	assert.Equal(t, KindGeneralChat, a1.Name())
	assert.Len(t, reg.ListMetadata(), 8)
}
