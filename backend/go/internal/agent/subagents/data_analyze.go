package subagents

import (
	"context"
	"fmt"
	"strings"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/models"
)

// KindDataAnalyze 是数据分析子智能体的类型名。
const KindDataAnalyze = "data_analyze"

const analyzeTemperature float32 = 0.2

// DataAnalyzer 分析上游获取的数据，数据过大时走分片归并。
type DataAnalyzer struct {
	agent.Base
	deps *Deps
}

func NewDataAnalyzer(deps *Deps) *DataAnalyzer {
	a := &DataAnalyzer{Base: deps.base(KindDataAnalyze), deps: deps}
	t := analyzeTemperature
	a.Temperature = &t
	return a
}

func (a *DataAnalyzer) Execute(ctx context.Context, in *agent.Input, emit agent.Emitter) error {
	return a.Run(ctx, in, emit, func(ctx context.Context) error { return a.run(ctx, in) })
}

func (a *DataAnalyzer) run(ctx context.Context, in *agent.Input) error {
	raw := in.Param("analyze_data")
	chunks := toChunks(raw)
	if len(chunks) == 0 {
		return a.FailWithEvent("无数据分析数据")
	}
	a.SetResult("analyze_data", raw)
	if as, ok := in.Param("assistant").(map[string]interface{}); ok {
		a.SetResult("assistant", as)
	}
	a.AddLog("输入数据", raw)

	opts := a.Options()
	mode := models.ResponseMode(in.StringParam("llm_response_type"))
	if mode == "" {
		mode = opts.LLMResponseType
	}

	// 提示词中的数据位置用占位符表示，分片时逐片替换
	template := a.systemPrompt(in)
	a.SetResult("prompt", template)
	joined := strings.Join(chunks, "\n\n")
	reduce := len(chunks) > 1 || (opts.SplitMaxTokens > 0 && a.deps.countTokens(joined) > opts.SplitMaxTokens)

	var text string
	var err error
	label := fmt.Sprintf("数据分析【%s】", in.Query)
	switch {
	case reduce:
		text, err = a.mapReduce(ctx, in.Query, template, chunks)
		if err != nil {
			return err
		}
		if err := a.emitText(in, mode, text); err != nil {
			return err
		}
	case mode == models.ResponseStream:
		msgs := agent.HistoryMessages(fill(template, map[string]string{"analysis_data": joined}), nil, "", in.Query)
		text, err = a.Stream(ctx, msgs, label, func(chunk string) error {
			return a.Emit(&models.Event{
				Type:    models.EventChat,
				Name:    a.Name() + "_chat",
				Status:  models.StatusRunning,
				Message: chunk,
			})
		})
		if err != nil {
			return err
		}
	default:
		msgs := agent.HistoryMessages(fill(template, map[string]string{"analysis_data": joined}), nil, "", in.Query)
		text, err = a.Invoke(ctx, msgs, label)
		if err != nil {
			return err
		}
		if err := a.emitText(in, mode, text); err != nil {
			return err
		}
	}
	a.SetResult("data", text)

	if in.BoolParam("is_save_file", opts.IsSaveFile) && a.deps.Exporter != nil {
		format := opts.ResultFormat
		if format == "" {
			format = models.FormatMarkdown
		}
		fd, err := a.deps.Exporter.Export(ctx, &models.ExportRequest{
			TaskID:   in.TurnID,
			Name:     "data_analyze_" + a.deps.now().Format("20060102150405"),
			Format:   format,
			Title:    in.Query,
			Markdown: text,
		})
		if err != nil {
			return fmt.Errorf("导出分析报告失败: %w", err)
		}
		a.SetResult("file", fd)
		a.AddLog("文件", fd)
		if err := a.Emit(&models.Event{
			Type:    models.EventFile,
			Name:    a.Name() + "_file",
			Status:  models.StatusRunning,
			Message: fd.Filename,
			File:    fd,
		}); err != nil {
			return err
		}
	}
	return a.Complete(text, "数据分析完成")
}

// emitText 一次性输出分析结果。报告模式下，报告与助手服务使用 info 事件。
func (a *DataAnalyzer) emitText(in *agent.Input, mode models.ResponseMode, text string) error {
	typ := models.EventChat
	if mode == models.ResponseReport {
		service, _ := in.MapParam("intent_data")["selected_service"].(string)
		if service == "report" || service == "agent" {
			typ = models.EventInfo
		}
	}
	if text == "" {
		return nil
	}
	return a.Emit(&models.Event{
		Type:    typ,
		Name:    a.Name() + "_chat",
		Status:  models.StatusRunning,
		Message: text,
	})
}

// systemPrompt 组装分析提示词，{analysis_data} 保留为占位符。
// 指定了助手时使用助手的模型定义与输出格式。
func (a *DataAnalyzer) systemPrompt(in *agent.Input) string {
	now := a.deps.now()
	role := fill(defaultRolePrompt, map[string]string{"role": "CRM智能助理"})
	output := ""
	if as := models.AssistantFromMap(in.MapParam("assistant")); as != nil {
		if as.ModelDefinition != "" {
			role = as.ModelDefinition
		}
		output = as.OutputFormatDocument
	} else if custom := in.MapParam("analysis_prompt"); custom != nil {
		if r, _ := custom["role_prompt_template"].(string); r != "" {
			role = r
		}
		output, _ = custom["analytical_report_format"].(string)
	}
	request := toText(in.Param("data_request"))
	return fill(analysisPrompt, map[string]string{
		"role_prompt":   role,
		"user_query":    in.Query,
		"data_request":  request,
		"output_format": output,
		"current_time":  nowString(now),
		"weekday":       weekday(now),
	})
}
