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

func routeBySystem(routes map[string]string) func(req *models.GenerateContentRequest) (string, error) {
	return func(req *models.GenerateContentRequest) (string, error) {
		system := llmtest.SystemPrompt(req)
		for marker, reply := range routes {
			if strings.Contains(system, marker) {
				return reply, nil
			}
		}
		return "", llmtest.ErrScripted
	}
}

func TestIntentRecognizer_Chat(t *testing.T) {
	model := &llmtest.Scripted{Replies: []string{"```json\n{\"selected_service\": \"chat\", \"confidence\": 0.9, \"tip\": \"忽略\"}\n```"}}
	a := NewIntentRecognizer(newDeps(model))
	rec := &collector{}

	require.NoError(t, a.Execute(context.Background(), input("你好", nil), rec.emit))

	assert.Equal(t, agent.StateCompleted, a.State())
	assert.Empty(t, rec.ofType(models.EventChat), "chat 服务不输出提示语")
	done := rec.last()
	require.NotNil(t, done)
	assert.Equal(t, models.EventCompleted, done.Type)
	assert.Equal(t, "意图识别完成", done.Message)
	out := done.Output.(map[string]interface{})
	assert.Equal(t, "chat", out["selected_service"])
	assert.Equal(t, false, out["do_next"])
	assert.Equal(t, 1, model.Calls())
	assert.Contains(t, llmtest.SystemPrompt(model.Requests()[0]), "- report: 报告")
}

func TestIntentRecognizer_ExtractsParameters(t *testing.T) {
	model := &llmtest.Scripted{Respond: routeBySystem(map[string]string{
		"意图识别助手": `{"selected_service": "report", "value": 7, "tip": "好的", "data_sources": {"user_data": {"name": "张三"}}}`,
		"数据识别助手": `{"tip": "正在获取数据", "data_sources": {"user_data": {"crm_user_id": 42}, "user_login_log": {}}}`,
	})}
	a := NewIntentRecognizer(newDeps(model))
	rec := &collector{}

	require.NoError(t, a.Execute(context.Background(), input("分析张三的登录情况", nil), rec.emit))

	assert.Equal(t, 2, model.Calls())
	assert.Equal(t, "好的\n正在获取数据\n", rec.text(models.EventChat))
	for _, ev := range rec.ofType(models.EventChat) {
		assert.Equal(t, "intent_recognition_tip", ev.Name)
	}
	// 内联的参数提取不会把自己的事件透传出去
	assert.Len(t, rec.ofType(models.EventCompleted), 1)

	out := rec.last().Output.(map[string]interface{})
	assert.Equal(t, "report", out["selected_service"])
	assert.Equal(t, "7", out["value"])
	assert.Equal(t, true, out["do_next"])
	ds := out["data_sources"].(map[string]interface{})
	assert.Contains(t, ds, "user_login_log")
	assert.Contains(t, llmtest.SystemPrompt(model.Requests()[1]), "正在获取数据")
}

func TestIntentRecognizer_ExtractionFailureKeepsDataSources(t *testing.T) {
	model := &llmtest.Scripted{Respond: routeBySystem(map[string]string{
		"意图识别助手": `{"selected_service": "mcp", "data_sources": {"user_data": {"name": "李四"}}}`,
		"数据识别助手": `抱歉，我无法提取`,
	})}
	a := NewIntentRecognizer(newDeps(model))
	rec := &collector{}

	require.NoError(t, a.Execute(context.Background(), input("李四的资料", nil), rec.emit))

	out := rec.last().Output.(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"user_data": map[string]interface{}{"name": "李四"}}, out["data_sources"])
	assert.Equal(t, true, out["do_next"])
	assert.Contains(t, llmtest.SystemPrompt(model.Requests()[1]), "正在制定任务计划")
}

func TestIntentRecognizer_ActionRemap(t *testing.T) {
	model := &llmtest.Scripted{Replies: []string{`{"selected_service": "report"}`}}
	a := NewIntentRecognizer(newDeps(model))
	rec := &collector{}

	require.NoError(t, a.Execute(context.Background(), input("查一下", map[string]interface{}{"action": "chat"}), rec.emit))

	out := rec.last().Output.(map[string]interface{})
	assert.Equal(t, "mcp", out["selected_service"])
}

func TestIntentRecognizer_InvalidJSON(t *testing.T) {
	reply := strings.Repeat("无法识别", 100)
	a := NewIntentRecognizer(newDeps(&llmtest.Scripted{Replies: []string{reply}}))
	rec := &collector{}

	require.NoError(t, a.Execute(context.Background(), input("？？", nil), rec.emit))

	assert.Equal(t, agent.StateFailed, a.State())
	ev := rec.last()
	assert.Equal(t, models.EventError, ev.Type)
	assert.Equal(t, "intent_recognition_error", ev.Name)
	assert.True(t, strings.HasPrefix(ev.Message, "JSON解析失败，原始内容: "))
	assert.True(t, strings.HasSuffix(ev.Message, "..."))
	assert.Equal(t, 200, len([]rune(strings.TrimSuffix(strings.TrimPrefix(ev.Message, "JSON解析失败，原始内容: "), "..."))))
}

func TestIntentRecognizer_StaticPrompt(t *testing.T) {
	model := &llmtest.Scripted{Replies: []string{`{"selected_service": "chat"}`}}
	a := NewIntentRecognizer(newDeps(model))
	in := input("你好", nil)
	in.Prompt = "固定提示词"

	require.NoError(t, a.Execute(context.Background(), in, (&collector{}).emit))
	assert.Equal(t, "固定提示词", llmtest.SystemPrompt(model.Requests()[0]))
}

func TestCheckAction(t *testing.T) {
	cases := []struct {
		action, in, want string
	}{
		{"agent", "mcp", "report"},
		{"agent", "chat", "chat"},
		{"chat", "agent", "mcp"},
		{"chat", "report", "mcp"},
		{"chat", "chat", "chat"},
		{"", "agent", "agent"},
		{"report", "mcp", "mcp"},
	}
	for _, c := range cases {
		intent := &models.IntentResult{SelectedService: c.in}
		CheckAction(c.action, intent)
		assert.Equal(t, c.want, intent.SelectedService, "%s/%s", c.action, c.in)
	}
	CheckAction("agent", nil)
}

func TestParameterExtractor(t *testing.T) {
	t.Run("解析成功", func(t *testing.T) {
		a := NewParameterExtractor(newDeps(&llmtest.Scripted{Replies: []string{`{"data_sources": {}}`}}))
		rec := &collector{}
		in := input("q", nil)
		in.Prompt = "提取"
		require.NoError(t, a.Execute(context.Background(), in, rec.emit))
		ev := rec.last()
		assert.Equal(t, models.StatusCompleted, ev.Status)
		assert.Equal(t, "参数提取完成", ev.Message)
	})

	t.Run("解析失败", func(t *testing.T) {
		a := NewParameterExtractor(newDeps(&llmtest.Scripted{Replies: []string{"not json"}}))
		rec := &collector{}
		in := input("q", nil)
		in.Prompt = "提取"
		require.NoError(t, a.Execute(context.Background(), in, rec.emit))
		ev := rec.last()
		assert.Equal(t, models.EventCompleted, ev.Type)
		assert.Equal(t, models.StatusError, ev.Status)
		assert.Equal(t, "not json", ev.Output)
		assert.Equal(t, agent.StateCompleted, a.State())
	})
}
