package dataquery

import (
	"context"
	"fmt"
	"time"

	"AIAssistant/backend/go/internal/cache"
	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/pkg/logger"
	"AIAssistant/backend/go/pkg/mcp_host"
)

// New 按配置的传输方式创建客户端，并在配置了 cacheTTL 时加上去重缓存。
// 返回的 close 函数释放 MCP 连接，HTTP 传输时为空操作。
func New(ctx context.Context, cfg config.DataQueryConfig, attempts int, c cache.Cache, log *logger.Logger) (Client, func() error, error) {
	var (
		inner   Client
		closeFn = func() error { return nil }
	)
	switch cfg.Transport {
	case "", "http":
		hc, err := NewHTTPClient(cfg, attempts, log)
		if err != nil {
			return nil, nil, err
		}
		inner = hc
	case "mcp":
		host := mcp_host.NewHost()
		if err := host.Connect(ctx, mcp_host.OptionsFromConfig(cfg.MCP)); err != nil {
			return nil, nil, fmt.Errorf("连接 MCP 数据服务失败: %w", err)
		}
		inner = NewMCPClient(host, cfg.MCP.Tool)
		closeFn = host.CloseAll
	default:
		return nil, nil, fmt.Errorf("不支持的数据查询传输方式: %s", cfg.Transport)
	}
	return NewCached(inner, c, time.Duration(cfg.CacheTTL)*time.Second, log), closeFn, nil
}
