package subagents

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/llm/llmtest"
	"AIAssistant/backend/go/internal/models"
)

var analyst = &models.Assistant{
	ID:                   "7",
	Name:                 "风控助手",
	Description:          "识别异常登录",
	ModelDefinition:      "你是风控专家",
	OutputFormatDocument: "## 结论",
	QueryTypes:           []string{"user_login_log", "user_amount_log"},
}

func TestAssistantAgent_Found(t *testing.T) {
	for name, params := range map[string]map[string]interface{}{
		"按ID":   {"assistant_id": "7"},
		"按数字ID": {"assistant_id": float64(7)},
		"按名称":   {"assistant_id": "99", "assistant_name": "风控助手"},
	} {
		t.Run(name, func(t *testing.T) {
			deps := newDeps(&llmtest.Scripted{})
			deps.Assistants = &fakeDirectory{items: []*models.Assistant{analyst}}
			a := NewAssistantAgent(deps)
			rec := &collector{}

			require.NoError(t, a.Execute(context.Background(), input("q", params), rec.emit))

			ev := rec.last()
			assert.Equal(t, models.EventCompleted, ev.Type)
			assert.Equal(t, "获取[风控助手]助手信息", ev.Message)
			assert.Equal(t, "7", ev.Output.(map[string]interface{})["assistant_id"])
			assert.Equal(t, "助手信息：风控助手\n 助手描述：识别异常登录", a.Result()["output"])
			assert.NotNil(t, a.Result()["assistant"])
		})
	}
}

func TestAssistantAgent_NotFound(t *testing.T) {
	model := &llmtest.Scripted{Default: "没有这个助手哦"}
	deps := newDeps(model)
	deps.Assistants = &fakeDirectory{items: []*models.Assistant{analyst}}
	a := NewAssistantAgent(deps)
	rec := &collector{}

	require.NoError(t, a.Execute(context.Background(), input("q", map[string]interface{}{"assistant_id": "1"}), rec.emit))

	assert.Equal(t, agent.StateFailed, a.State())
	assert.Equal(t, "没有这个助手哦", rec.text(models.EventChat))
	assert.Equal(t, "assistant_error_chat", rec.ofType(models.EventChat)[0].Name)
	assert.Contains(t, llmtest.SystemPrompt(model.Requests()[0]), "助手不存在，请选择以下助手[风控助手]")
	ev := rec.last()
	assert.Equal(t, models.EventError, ev.Type)
	assert.Equal(t, "未找到助手", ev.Message)
}

func TestDataFetcher_Success(t *testing.T) {
	query := &fakeQuery{result: &models.QueryResult{
		Success: true,
		Data: map[string]*models.Table{
			"user_data":      {Columns: []string{"id", "name"}, Rows: [][]interface{}{{float64(1), "张三"}}},
			"user_login_log": {Columns: []string{"ip"}, Rows: [][]interface{}{{"10.0.0.1"}, {"10.0.0.2"}}},
		},
	}}
	exporter := &fakeExporter{}
	deps := newDeps(&llmtest.Scripted{})
	deps.DataQuery = query
	deps.Exporter = exporter
	a := NewDataFetcher(deps)
	rec := &collector{}

	in := input("张三的登录", map[string]interface{}{
		"data_sources": map[string]interface{}{"user_data": map[string]interface{}{"name": "张三"}},
		"crm_user_id":  "42",
	})
	in.Options.ResultFormat = models.FormatXLSX
	require.NoError(t, a.Execute(context.Background(), in, rec.emit))

	require.NotNil(t, query.last.CRMUserID)
	assert.Equal(t, int64(42), *query.last.CRMUserID)

	files := rec.ofType(models.EventFile)
	require.Len(t, files, 2)
	assert.Equal(t, "get_users_file", files[0].Name)
	assert.Equal(t, "users_info_2_1.md", files[0].File.Filename)
	assert.Equal(t, models.FormatXLSX, exporter.reqs[1].Format)
	assert.Len(t, exporter.reqs[1].Tables, 2)

	ev := rec.last()
	assert.Equal(t, "获取数据完成", ev.Message)
	parts := ev.Output.([]interface{})
	require.Len(t, parts, 1)
	assert.Contains(t, parts[0], "共 2 条记录")
	assert.Len(t, a.Result()["files"], 2)
}

func TestDataFetcher_NoSave(t *testing.T) {
	exporter := &fakeExporter{}
	deps := newDeps(&llmtest.Scripted{})
	deps.DataQuery = &fakeQuery{result: &models.QueryResult{Success: true, Data: map[string]*models.Table{"user_data": {Columns: []string{"id"}}}}}
	deps.Exporter = exporter
	a := NewDataFetcher(deps)
	rec := &collector{}

	in := input("q", map[string]interface{}{
		"data_sources": map[string]interface{}{"user_data": map[string]interface{}{"id": 1}},
		"is_save_file": false,
	})
	require.NoError(t, a.Execute(context.Background(), in, rec.emit))
	assert.Empty(t, exporter.reqs)
	assert.Empty(t, rec.ofType(models.EventFile))
}

func TestDataFetcher_Failure(t *testing.T) {
	t.Run("上游失败", func(t *testing.T) {
		model := &llmtest.Scripted{Default: "查询失败了"}
		deps := newDeps(model)
		deps.DataQuery = &fakeQuery{result: &models.QueryResult{Success: false, Message: "HTTP错误: 500"}}
		a := NewDataFetcher(deps)
		rec := &collector{}

		in := input("q", map[string]interface{}{"data_sources": map[string]interface{}{"user_data": map[string]interface{}{"id": 1}}})
		require.NoError(t, a.Execute(context.Background(), in, rec.emit))

		assert.Equal(t, agent.StateFailed, a.State())
		assert.Equal(t, "查询失败了", rec.text(models.EventChat))
		assert.Equal(t, "HTTP错误: 500", rec.last().Message)
		assert.Contains(t, llmtest.SystemPrompt(model.Requests()[0]), "HTTP错误: 500")
	})

	t.Run("请求为空", func(t *testing.T) {
		query := &fakeQuery{}
		deps := newDeps(&llmtest.Scripted{Default: "x"})
		deps.DataQuery = query
		a := NewDataFetcher(deps)
		rec := &collector{}

		require.NoError(t, a.Execute(context.Background(), input("q", nil), rec.emit))
		assert.Nil(t, query.last)
		assert.Equal(t, "请求数据为空", rec.last().Message)
	})
}

func TestDataFetcher_AppliesAssistant(t *testing.T) {
	query := &fakeQuery{result: &models.QueryResult{Success: true}}
	deps := newDeps(&llmtest.Scripted{})
	deps.DataQuery = query
	a := NewDataFetcher(deps)

	in := input("q", map[string]interface{}{
		"data_sources": map[string]interface{}{"user_data": map[string]interface{}{"name": "张三", "range_time": "近7天"}},
		"assistant":    analyst.ToMap(),
	})
	require.NoError(t, a.Execute(context.Background(), in, (&collector{}).emit))

	assert.Equal(t, map[string]interface{}{"limit": 2000, "range_time": "近7天"}, query.last.Sources["user_login_log"])
	assert.Contains(t, query.last.Sources, "user_amount_log")
	assert.Equal(t, "风控助手", a.Result()["assistant"].(map[string]interface{})["name"])
}

func TestApplyAssistant(t *testing.T) {
	t.Run("优先使用请求中已有的类型", func(t *testing.T) {
		sources := map[string]interface{}{
			"user_data":      map[string]interface{}{"name": "a"},
			"user_login_log": map[string]interface{}{"x": 1},
			"mt4_trade":      map[string]interface{}{},
		}
		ApplyAssistant(sources, []string{"user_login_log", "user_amount_log"}, 10)
		assert.Equal(t, map[string]interface{}{"limit": 10}, sources["user_login_log"])
		assert.NotContains(t, sources, "user_amount_log")
		assert.Equal(t, map[string]interface{}{}, sources["mt4_trade"])
	})

	t.Run("没有 user_data 时不修改", func(t *testing.T) {
		sources := map[string]interface{}{"user_login_log": map[string]interface{}{}}
		ApplyAssistant(sources, []string{"user_amount_log"}, 10)
		assert.Len(t, sources, 1)
	})

	t.Run("助手类型包含 user_data", func(t *testing.T) {
		user := map[string]interface{}{"name": "a"}
		sources := map[string]interface{}{"user_data": user}
		ApplyAssistant(sources, []string{"user_data", "mt5_trade"}, 5)
		assert.Equal(t, user, sources["user_data"])
		assert.Equal(t, map[string]interface{}{"limit": 5}, sources["mt5_trade"])
	})
}

func TestDataAnalyzer_NoData(t *testing.T) {
	model := &llmtest.Scripted{}
	a := NewDataAnalyzer(newDeps(model))
	rec := &collector{}

	require.NoError(t, a.Execute(context.Background(), input("q", map[string]interface{}{"analyze_data": []interface{}{" ", ""}}), rec.emit))

	assert.Equal(t, agent.StateFailed, a.State())
	assert.Equal(t, "无数据分析数据", rec.last().Message)
	assert.Zero(t, model.Calls())
}

func TestDataAnalyzer_ReportEmitsInfo(t *testing.T) {
	model := &llmtest.Scripted{Default: "## 结论\n一切正常"}
	exporter := &fakeExporter{}
	deps := newDeps(model)
	deps.Exporter = exporter
	a := NewDataAnalyzer(deps)
	rec := &collector{}

	in := input("分析", map[string]interface{}{
		"analyze_data": "| id | name |\n| 1 | 张三 |",
		"intent_data":  map[string]interface{}{"selected_service": "report"},
		"assistant":    analyst.ToMap(),
	})
	require.NoError(t, a.Execute(context.Background(), in, rec.emit))

	info := rec.ofType(models.EventInfo)
	require.Len(t, info, 1)
	assert.Equal(t, "## 结论\n一切正常", info[0].Message)

	req := model.Requests()[0]
	system := llmtest.SystemPrompt(req)
	assert.Contains(t, system, "你是风控专家")
	assert.Contains(t, system, "| 1 | 张三 |")
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.2, *req.Temperature, 1e-6)

	files := rec.ofType(models.EventFile)
	require.Len(t, files, 1)
	assert.Equal(t, "data_analyze_20250908100000.md", files[0].File.Filename)
	assert.Equal(t, "分析", exporter.reqs[0].Title)
	assert.Equal(t, files[0].File, a.Result()["file"])

	ev := rec.last()
	assert.Equal(t, "数据分析完成", ev.Message)
	assert.Equal(t, "## 结论\n一切正常", ev.Output)
}

func TestDataAnalyzer_InvokeEmitsChat(t *testing.T) {
	a := NewDataAnalyzer(newDeps(&llmtest.Scripted{Default: "结果"}))
	rec := &collector{}

	in := input("分析", map[string]interface{}{
		"analyze_data":      "some data to analyse",
		"llm_response_type": "invoke",
		"intent_data":       map[string]interface{}{"selected_service": "report"},
		"is_save_file":      false,
	})
	require.NoError(t, a.Execute(context.Background(), in, rec.emit))
	assert.Empty(t, rec.ofType(models.EventInfo))
	assert.Equal(t, "结果", rec.text(models.EventChat))
	assert.Empty(t, rec.ofType(models.EventFile))
}

func TestDataAnalyzer_Stream(t *testing.T) {
	a := NewDataAnalyzer(newDeps(&llmtest.Scripted{Default: "流式分析结果", ChunkSize: 2}))
	rec := &collector{}

	in := input("分析", map[string]interface{}{"analyze_data": "data", "is_save_file": false})
	in.Options.LLMResponseType = models.ResponseStream
	require.NoError(t, a.Execute(context.Background(), in, rec.emit))

	chats := rec.ofType(models.EventChat)
	assert.Len(t, chats, 3)
	assert.Equal(t, "data_analyze_chat", chats[0].Name)
	assert.Equal(t, "流式分析结果", rec.text(models.EventChat))
}

func TestDataAnalyzer_MapReduce(t *testing.T) {
	var partial int32
	model := &llmtest.Scripted{Respond: func(req *models.GenerateContentRequest) (string, error) {
		system := llmtest.SystemPrompt(req)
		switch {
		case strings.Contains(system, "以下是对同一份数据的多个分片"):
			return "合并报告", nil
		case strings.Contains(system, "第一部分数据内容"):
			atomic.AddInt32(&partial, 1)
			return "分析一", nil
		case strings.Contains(system, "第二部分数据内容"):
			atomic.AddInt32(&partial, 1)
			return "", llmtest.ErrScripted
		}
		return "", llmtest.ErrScripted
	}}
	a := NewDataAnalyzer(newDeps(model))
	rec := &collector{}

	in := input("分析", map[string]interface{}{
		"analyze_data": []interface{}{"第一部分数据内容，包含足够多的字符", "第二部分数据内容，包含足够多的字符", "| - |"},
		"is_save_file": false,
	})
	require.NoError(t, a.Execute(context.Background(), in, rec.emit))

	steps := rec.ofType(models.EventStep)
	require.Len(t, steps, 2)
	for i, s := range steps {
		assert.Equal(t, i+1, s.ChunkIndex)
		assert.Equal(t, 2, s.ChunkTotal)
		assert.Equal(t, models.StepExecute, s.TypeName)
	}
	assert.Equal(t, "已完成第1/2个数据分片分析", steps[0].Message)
	assert.Equal(t, "分析一", steps[0].Content)
	assert.Contains(t, steps[1].Content, "Chunk 2 processing failed")
	assert.Equal(t, int32(2), atomic.LoadInt32(&partial))

	assert.Equal(t, "合并报告", rec.last().Output)
	assert.Equal(t, 3, model.Calls())
}

func TestDataAnalyzer_MapReduceSequential(t *testing.T) {
	model := &llmtest.Scripted{Respond: func(req *models.GenerateContentRequest) (string, error) {
		return "ok", nil
	}}
	deps := newDeps(model)
	deps.Config.SplitUseParallel = false
	a := NewDataAnalyzer(deps)
	rec := &collector{}

	in := input("分析", map[string]interface{}{
		"analyze_data": []string{"abcdefghijklmnop", "qrstuvwxyzabcdef", "ghijklmnopqrstuv"},
		"is_save_file": false,
	})
	require.NoError(t, a.Execute(context.Background(), in, rec.emit))
	assert.Len(t, rec.ofType(models.EventStep), 3)
	assert.Equal(t, 4, model.Calls())
}

func TestDataAnalyzer_Interrupted(t *testing.T) {
	var calls int32
	in := input("分析", map[string]interface{}{
		"analyze_data": []string{"abcdefghijklmnop", "qrstuvwxyzabcdef"},
		"is_save_file": false,
	})
	in.Options.InterruptionChecker = func() bool { return atomic.LoadInt32(&calls) > 0 }
	model := &llmtest.Scripted{Respond: func(req *models.GenerateContentRequest) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "ok", nil
	}}
	deps := newDeps(model)
	deps.Config.SplitUseParallel = false
	a := NewDataAnalyzer(deps)
	rec := &collector{}

	err := a.Execute(context.Background(), in, rec.emit)
	assert.ErrorIs(t, err, agent.ErrInterrupted)
	assert.Equal(t, agent.StateCancelled, a.State())
	assert.Empty(t, rec.ofType(models.EventCompleted))
}

func TestMeaningful(t *testing.T) {
	assert.False(t, meaningful("| --- | --- |\n|  |"))
	assert.True(t, meaningful("这是一段有意义的文字内容"))
}
