package subagents

import (
	"context"
	"fmt"
	"time"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/dataquery"
	"AIAssistant/backend/go/internal/models"
)

// KindGetUsers 是获取用户数据子智能体的类型名。
const KindGetUsers = "get_users"

// DataFetcher 从数据仓库查询用户数据并渲染为 Markdown。
type DataFetcher struct {
	agent.Base
	deps *Deps
}

func NewDataFetcher(deps *Deps) *DataFetcher {
	return &DataFetcher{Base: deps.base(KindGetUsers), deps: deps}
}

func (a *DataFetcher) Execute(ctx context.Context, in *agent.Input, emit agent.Emitter) error {
	return a.Run(ctx, in, emit, func(ctx context.Context) error { return a.run(ctx, in) })
}

func (a *DataFetcher) run(ctx context.Context, in *agent.Input) error {
	if a.deps.DataQuery == nil {
		return fmt.Errorf("未配置数据查询客户端")
	}
	req := a.buildRequest(in)
	a.SetResult("request", req.Sources)
	a.AddLog("查询的请求", req.Sources)

	var result *models.QueryResult
	if len(req.Sources) == 0 {
		result = &models.QueryResult{Success: false, Message: "请求数据为空"}
	} else {
		if err := a.CheckInterruption(); err != nil {
			return err
		}
		start := time.Now()
		res, err := a.deps.DataQuery.Query(ctx, req)
		if err != nil {
			if cerr := a.CheckInterruption(); cerr != nil {
				return cerr
			}
			return fmt.Errorf("获取用户异常 <%v>", err)
		}
		a.AddTiming(fmt.Sprintf("查询耗时: %s", time.Since(start).Round(time.Millisecond)))
		result = res
	}

	if !result.Success {
		a.AddLog("执行失败", result)
		system := fill(errorPrompt, map[string]string{"error_message": result.Message, "user_query": in.Query})
		if _, err := a.ChatStream(ctx, in, system, models.StatusError); err != nil {
			return err
		}
		return a.FailWithEvent(result.Message)
	}
	a.AddLog("查询结果", map[string]interface{}{"message": result.Message, "rows": result.RowCount()})

	opts := a.Options()
	parts := dataquery.RenderMarkdown(result, opts.SplitMaxTokens, a.deps.countTokens)
	if parts == nil {
		parts = []string{}
	}
	a.SetResult("data", result.Data)
	// 助手信息原样传给后续的分析任务
	if as := in.MapParam("assistant"); as != nil {
		a.SetResult("assistant", as)
	}

	if in.BoolParam("is_save_file", opts.IsSaveFile) && len(parts) > 0 && a.deps.Exporter != nil {
		files, err := a.export(ctx, in, result, parts)
		if err != nil {
			return err
		}
		a.SetResult("files", files)
		a.AddLog("输出文件", files)
	}

	output := make([]interface{}, len(parts))
	for i, p := range parts {
		output[i] = p
	}
	return a.Complete(output, "获取数据完成")
}

// export 每个 Markdown 分段导出一个文件；结果格式为 xlsx 时额外导出原始表格。
func (a *DataFetcher) export(ctx context.Context, in *agent.Input, result *models.QueryResult, parts []string) ([]*models.FileDescriptor, error) {
	var files []*models.FileDescriptor
	emitFile := func(fd *models.FileDescriptor) error {
		files = append(files, fd)
		return a.Emit(&models.Event{
			Type:    models.EventFile,
			Name:    a.Name() + "_file",
			Status:  models.StatusRunning,
			Message: fd.Filename,
			File:    fd,
		})
	}

	for i, part := range parts {
		fd, err := a.deps.Exporter.Export(ctx, &models.ExportRequest{
			TaskID:   in.TurnID,
			Name:     fmt.Sprintf("users_info_%d_%d", len(result.Data), i+1),
			Format:   models.FormatMarkdown,
			Markdown: part,
		})
		if err != nil {
			return nil, fmt.Errorf("导出数据失败: %w", err)
		}
		if err := emitFile(fd); err != nil {
			return nil, err
		}
	}

	if a.Options().ResultFormat == models.FormatXLSX {
		fd, err := a.deps.Exporter.Export(ctx, &models.ExportRequest{
			TaskID: in.TurnID,
			Name:   fmt.Sprintf("users_data_%d", len(result.Data)),
			Format: models.FormatXLSX,
			Tables: result.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("导出数据失败: %w", err)
		}
		if err := emitFile(fd); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// buildRequest 组装查询请求。指定了助手时，按助手需要的数据类型补全请求。
func (a *DataFetcher) buildRequest(in *agent.Input) *models.QueryRequest {
	sources := make(map[string]interface{})
	for k, v := range in.MapParam("data_sources") {
		sources[k] = v
	}
	req := &models.QueryRequest{Sources: sources}

	if id, ok := parseInt64(in.Param("crm_user_id")); ok {
		req.CRMUserID = &id
	} else if in.Param("crm_user_id") != nil {
		a.Log.Warn(fmt.Sprintf("crm_user_id 不是有效数字: %v", in.Param("crm_user_id")))
	}

	if as := models.AssistantFromMap(in.MapParam("assistant")); as != nil {
		ApplyAssistant(sources, as.QueryTypes, a.deps.Config.MaxDataCount)
	}
	return req
}

// ApplyAssistant 按助手需要的数据类型补全请求：
// 请求中已有且助手需要的类型优先，否则使用助手的全部类型；
// 每个类型的查询条件为 {limit, range_time}，range_time 取自 user_data。
// 请求中没有 user_data 时不做任何修改。
func ApplyAssistant(sources map[string]interface{}, queryTypes []string, maxDataCount int) {
	userData, ok := sources["user_data"].(map[string]interface{})
	if !ok || len(userData) == 0 {
		return
	}
	rangeTime := userData["range_time"]

	allowed := make(map[string]bool, len(queryTypes))
	for _, t := range queryTypes {
		allowed[t] = true
	}
	var selected []string
	for t := range sources {
		if t != "user_data" && allowed[t] {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		selected = queryTypes
	}

	for _, t := range selected {
		if t == "user_data" {
			continue
		}
		cond := map[string]interface{}{"limit": maxDataCount}
		if !isEmpty(rangeTime) {
			cond["range_time"] = rangeTime
		}
		sources[t] = cond
	}
}

func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case map[string]interface{}:
		return len(x) == 0
	}
	return false
}
