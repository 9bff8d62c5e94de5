package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/internal/models"
)

// ErrEmptyRequest 表示请求中没有任何消息。
var ErrEmptyRequest = errors.New("请求消息为空")

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
//
// GenerateContentStream 返回的通道在流结束、出错或 ctx 取消时关闭；
// 出错时最后一个响应的 Err 字段不为空。调用方停止读取时应取消 ctx。
type LLM interface {
	GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
// 配置了熔断或限流时返回包装后的客户端。
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLM, error) {
	timeout := 120 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("LLM 超时配置无效: %w", err)
		}
		timeout = d
	}

	var (
		client LLM
		err    error
	)
	switch cfg.Provider {
	case "openai":
		client, err = NewOpenAI(cfg.Model, cfg.APIKey, cfg.BaseURL, cfg.Temperature)
	case "ollama":
		client, err = NewOllama(cfg.Model, cfg.BaseURL, timeout, cfg.Temperature)
	case "gemini":
		client, err = NewGemini(ctx, cfg.Model, cfg.APIKey, cfg.Temperature)
	default:
		return nil, fmt.Errorf("不支持的 LLM 提供商: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewGuarded(client, cfg.Guard)
}

// Collect 消费整个流并返回拼接后的文本。
func Collect(ch <-chan *models.GenerateContentResponse) (string, error) {
	var sb strings.Builder
	for resp := range ch {
		if resp.Err != nil {
			return sb.String(), resp.Err
		}
		sb.WriteString(resp.Content)
	}
	return sb.String(), nil
}

// send 把响应写入通道，ctx 取消时放弃并返回 false。
func send(ctx context.Context, ch chan<- *models.GenerateContentResponse, resp *models.GenerateContentResponse) bool {
	select {
	case ch <- resp:
		return true
	case <-ctx.Done():
		return false
	}
}

func validate(req *models.GenerateContentRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return ErrEmptyRequest
	}
	return nil
}
