package mcp_host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"AIAssistant/backend/go/internal/config"
)

// ErrToolNotFound 表示已连接的服务端都没有提供该工具。
var ErrToolNotFound = errors.New("未找到 MCP 工具")

// Host 是一个 MCP 客户端主机
// 它可以连接多个 MCP 服务端，并提供统一的工具调用入口。
type Host struct {
	servers map[string]client.MCPClient
	mu      sync.RWMutex
}

// ConnectOptions 定义了连接到 MCP 服务端的配置项
type ConnectOptions struct {
	ServerName    string
	TransportType string // "stdio" or "http-sse"
	Command       string
	Args          []string
	URL           string
	Env           []string
}

// OptionsFromConfig 把配置转换为连接选项，环境变量按键排序。
func OptionsFromConfig(cfg config.MCPServerConfig) ConnectOptions {
	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	name := cfg.ServerName
	if name == "" {
		name = "data"
	}
	return ConnectOptions{
		ServerName:    name,
		TransportType: cfg.Transport,
		Command:       cfg.Command,
		Args:          cfg.Args,
		URL:           cfg.URL,
		Env:           env,
	}
}

// NewHost 创建一个新的 Host 实例
func NewHost() *Host {
	return &Host{
		servers: make(map[string]client.MCPClient),
	}
}

// Connect 根据提供的选项，连接到一个新的 MCP 服务端
func (h *Host) Connect(ctx context.Context, opts ConnectOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.servers[opts.ServerName]; exists {
		return fmt.Errorf("server with name '%s' already connected", opts.ServerName)
	}

	var mcpClient client.MCPClient
	switch opts.TransportType {
	case "stdio":
		c, err := client.NewStdioMCPClient(opts.Command, opts.Env, opts.Args...)
		if err != nil {
			return fmt.Errorf("failed to create stdio client: %w", err)
		}
		mcpClient = c
	case "http-sse":
		c, err := client.NewSSEMCPClient(opts.URL)
		if err != nil {
			return fmt.Errorf("failed to create sse client: %w", err)
		}
		// SSE 客户端需要先建立事件流
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sse client: %w", err)
		}
		mcpClient = c
	default:
		return fmt.Errorf("unsupported transport type: '%s'", opts.TransportType)
	}

	initRequest := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "assistant-service",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}
	if _, err := mcpClient.Initialize(ctx, initRequest); err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize client: %w", err)
	}

	h.servers[opts.ServerName] = mcpClient
	return nil
}

// InvokeTool 在所有连接的服务端中查找并调用指定的工具。
// 返回的 map 记录了各服务端的失败，调用成功时也可能非空。
func (h *Host) InvokeTool(ctx context.Context, toolName string, args map[string]interface{}) (*mcp.CallToolResult, map[string]error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	errs := make(map[string]error)
	for serverName, c := range h.servers {
		toolsResult, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			errs[serverName] = fmt.Errorf("failed to list tools: %w", err)
			continue
		}
		for _, tool := range toolsResult.Tools {
			if tool.Name != toolName {
				continue
			}
			result, err := c.CallTool(ctx, mcp.CallToolRequest{
				Params: mcp.CallToolParams{
					Name:      toolName,
					Arguments: args,
				},
			})
			if err != nil {
				errs[serverName] = fmt.Errorf("failed to call tool: %w", err)
				continue
			}
			return result, errs
		}
	}
	return nil, errs
}

// Call 调用工具，所有服务端都失败时把错误合并返回。
func (h *Host) Call(ctx context.Context, toolName string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	result, errs := h.InvokeTool(ctx, toolName, args)
	if result != nil {
		return result, nil
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	joined := make([]error, 0, len(names))
	for _, name := range names {
		joined = append(joined, fmt.Errorf("%s: %w", name, errs[name]))
	}
	return nil, errors.Join(joined...)
}

// CloseAll 关闭所有到服务端的连接并清理资源
func (h *Host) CloseAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for _, c := range h.servers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.servers = make(map[string]client.MCPClient)
	return errors.Join(errs...)
}
