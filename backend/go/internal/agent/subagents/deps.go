// Package subagents 实现注册到子智能体注册表中的各类子智能体。
package subagents

import (
	"context"
	"time"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/internal/dataquery"
	"AIAssistant/backend/go/internal/llm"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/pkg/logger"
	"AIAssistant/backend/go/pkg/textsplit"
)

// AssistantDirectory 查询后台配置的分析助手。找不到时返回 nil, nil。
type AssistantDirectory interface {
	Get(ctx context.Context, id string) (*models.Assistant, error)
	FindByName(ctx context.Context, name string) (*models.Assistant, error)
	List(ctx context.Context) ([]*models.Assistant, error)
}

// Exporter 把内容导出为文件。
type Exporter interface {
	Export(ctx context.Context, req *models.ExportRequest) (*models.FileDescriptor, error)
}

// Service 是意图识别可以选择的一种服务。
type Service struct {
	Name        string
	Description string
}

// Deps 是子智能体共享的依赖。
type Deps struct {
	LLM        llm.LLM
	Logger     *logger.Logger
	Assistants AssistantDirectory
	DataQuery  dataquery.Client
	Exporter   Exporter
	Config     config.AgentConfig
	// Services 返回当前注册的服务，供意图识别提示词使用
	Services func() []Service
	// Encoder 用于计算 token，为空时按字符计
	Encoder textsplit.Encoder
	Now     func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) encoder() textsplit.Encoder {
	if d.Encoder != nil {
		return d.Encoder
	}
	return textsplit.RuneEncoder{}
}

func (d *Deps) countTokens(s string) int {
	return len(d.encoder().Encode(s))
}

func (d *Deps) base(name string) agent.Base {
	return agent.NewBase(name, d.LLM, d.Logger)
}
