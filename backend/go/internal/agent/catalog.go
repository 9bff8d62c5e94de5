package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

const catalogPrefix = "/assistant/catalog/"

// CatalogStore 是目录的存储后端，通常由 etcd 实现。
type CatalogStore interface {
	Register(ctx context.Context, key, value string, ttl int64) (chan<- struct{}, error)
	Discover(ctx context.Context, prefix string) ([]string, error)
}

// CatalogEntry 描述一个服务实例提供的处理器与子智能体。
type CatalogEntry struct {
	Instance string          `json:"instance"`
	Address  string          `json:"address"`
	Version  string          `json:"version"`
	Handlers []string        `json:"handlers"`
	Agents   []AgentMetadata `json:"agents"`
}

// Catalog 把本实例的能力发布到共享存储，并可以列出所有实例。
type Catalog struct {
	store CatalogStore
	ttl   int64
}

// NewCatalog 创建目录，ttl 为租约时长（秒）。
func NewCatalog(store CatalogStore, ttl int64) *Catalog {
	if ttl <= 0 {
		ttl = 10
	}
	return &Catalog{store: store, ttl: ttl}
}

// Publish 发布实例信息并保持租约，向返回的通道发送信号或关闭它即可停止续约。
func (c *Catalog) Publish(ctx context.Context, entry CatalogEntry) (chan<- struct{}, error) {
	if entry.Instance == "" {
		return nil, fmt.Errorf("实例名不能为空")
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("序列化目录失败: %w", err)
	}
	return c.store.Register(ctx, catalogPrefix+entry.Instance, string(body), c.ttl)
}

// List 列出所有实例，无法解析的条目会被跳过。
func (c *Catalog) List(ctx context.Context) ([]CatalogEntry, error) {
	values, err := c.store.Discover(ctx, catalogPrefix)
	if err != nil {
		return nil, fmt.Errorf("读取服务目录失败: %w", err)
	}
	entries := make([]CatalogEntry, 0, len(values))
	for _, v := range values {
		var e CatalogEntry
		if json.Unmarshal([]byte(v), &e) == nil {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Instance < entries[j].Instance })
	return entries, nil
}
