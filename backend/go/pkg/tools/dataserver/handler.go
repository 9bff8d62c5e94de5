package dataserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"AIAssistant/backend/go/internal/models"
)

// ToolName 与数据查询客户端默认调用的工具名一致。
const ToolName = "query_data"

// Handler 处理 query_data 工具调用。
type Handler struct {
	wb *Workbook
}

func NewHandler(wb *Workbook) *Handler {
	return &Handler{wb: wb}
}

// Tool 返回 query_data 的工具定义。
func (h *Handler) Tool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Query warehouse data. Each top-level argument is a query type ("+strings.Join(h.wb.Types(), ", ")+") mapped to its parameters."),
		mcp.WithNumber("crm_user_id", mcp.Description("CRM user id of the caller, accepted but not checked")),
	)
}

// NewServer 创建注册了 query_data 工具的 MCP 服务端。
func NewServer(wb *Workbook, version string) *server.MCPServer {
	h := NewHandler(wb)
	s := server.NewMCPServer("warehouse-data", version, server.WithToolCapabilities(false))
	s.AddTool(h.Tool(), h.HandleQueryData)
	return s
}

// HandleQueryData 执行一次查询，结果以 QueryResult 的 JSON 文本返回。
// 请求中的未知类型使整个查询失败，与数据仓库 HTTP 接口的行为一致。
func (h *Handler) HandleQueryData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	result := &models.QueryResult{Success: true, Message: "ok", Data: map[string]*models.Table{}}

	var unknown []string
	for key, raw := range args {
		if key == "crm_user_id" {
			continue
		}
		params, _ := raw.(map[string]interface{})
		table, ok := h.wb.Query(key, params)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		result.Data[key] = table
	}
	switch {
	case len(unknown) > 0:
		sort.Strings(unknown)
		result = &models.QueryResult{Success: false, Message: "不支持的查询类型: " + strings.Join(unknown, ", ")}
	case len(result.Data) == 0:
		result = &models.QueryResult{Success: false, Message: "请求数据为空"}
	default:
		result.Metadata = map[string]interface{}{"row_count": result.RowCount()}
	}

	body, err := json.Marshal(result)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: fmt.Sprintf("failed to encode result: %v", err)}},
			IsError: true,
		}, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(body)}},
	}, nil
}
