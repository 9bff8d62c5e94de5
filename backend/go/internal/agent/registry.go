package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Factory 创建一个新的子智能体实例。
type Factory func() SubAgent

type registration struct {
	meta    AgentMetadata
	factory Factory
}

// Registry 按类型名保存子智能体的构造函数。
type Registry struct {
	entries map[string]registration
	mutex   sync.RWMutex
}

// NewRegistry 创建一个空的注册表。
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register 注册一种子智能体，同名注册会覆盖旧值。
func (r *Registry) Register(meta AgentMetadata, factory Factory) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries[meta.Kind] = registration{meta: meta, factory: factory}
}

// New 根据类型名创建子智能体。
func (r *Registry) New(kind string) (SubAgent, error) {
	r.mutex.RLock()
	reg, ok := r.entries[kind]
	r.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, kind)
	}
	return reg.factory(), nil
}

// Has 报告类型是否已注册。
func (r *Registry) Has(kind string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.entries[kind]
	return ok
}

// ListMetadata 返回所有已注册子智能体的元数据，按类型名排序。
func (r *Registry) ListMetadata() []AgentMetadata {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	list := make([]AgentMetadata, 0, len(r.entries))
	for _, reg := range r.entries {
		list = append(list, reg.meta)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Kind < list[j].Kind })
	return list
}
