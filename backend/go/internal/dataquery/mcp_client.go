package dataquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"AIAssistant/backend/go/internal/models"
)

// DefaultTool 是 MCP 数据服务的查询工具名。
const DefaultTool = "query_data"

// ToolInvoker 调用一个 MCP 工具，由 mcp_host.Host 实现。
type ToolInvoker interface {
	Call(ctx context.Context, tool string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// MCPClient 通过 MCP 工具查询数据，工具返回的文本内容是 QueryResult 的 JSON。
type MCPClient struct {
	invoker ToolInvoker
	tool    string
}

// NewMCPClient 创建 MCP 客户端，tool 为空时使用 DefaultTool。
func NewMCPClient(invoker ToolInvoker, tool string) *MCPClient {
	if tool == "" {
		tool = DefaultTool
	}
	return &MCPClient{invoker: invoker, tool: tool}
}

func (c *MCPClient) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error) {
	if bad := validate(req); bad != nil {
		return bad, nil
	}
	res, err := c.invoker.Call(ctx, c.tool, Body(req))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &models.QueryResult{Success: false, Message: fmt.Sprintf("MCP 调用失败: %v", err)}, nil
	}

	text := toolText(res)
	if res.IsError {
		return &models.QueryResult{Success: false, Message: fmt.Sprintf("MCP 工具返回错误: %s", text)}, nil
	}
	var result models.QueryResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return &models.QueryResult{Success: false, Message: fmt.Sprintf("解析 MCP 结果失败: %v", err)}, nil
	}
	return &result, nil
}

func toolText(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		switch tc := content.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "")
}
