package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	olla "github.com/ollama/ollama/api"

	"AIAssistant/backend/go/internal/models"
)

// Ollama 是一个用于 Ollama API 的 LLM 客户端。
type Ollama struct {
	client      *olla.Client
	model       string
	temperature float32
}

// NewOllama 创建一个新的 Ollama 客户端。
//
// 参数:
//
//	model: 要使用的模型名称。
//	baseURL: Ollama 服务的基准 URL。如果为空，则默认为 "http://localhost:11434"。
//	timeout: 单次 HTTP 请求的超时时间。
//
// 返回值:
//
//	*Ollama: 新创建的 Ollama 客户端实例。
//	error: 如果基准 URL 无效，则返回错误。
func NewOllama(model, baseURL string, timeout time.Duration, temperature float32) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	hc := &http.Client{Timeout: timeout}
	return &Ollama{client: olla.NewClient(parsedURL, hc), model: model, temperature: temperature}, nil
}

// GenerateContent 使用 Ollama Chat API 生成内容。
func (o *Ollama) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	var result *olla.ChatResponse
	err := o.client.Chat(ctx, o.toChatRequest(req, false), func(resp olla.ChatResponse) error {
		result = &resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with ollama: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("ollama 未返回任何内容")
	}
	return &models.GenerateContentResponse{
		Content:      result.Message.Content,
		CreateTime:   result.CreatedAt,
		ModelVersion: result.Model,
	}, nil
}

// GenerateContentStream 使用 Ollama Chat API 以流式方式生成内容。
func (o *Ollama) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	respChan := make(chan *models.GenerateContentResponse)

	go func() {
		defer close(respChan)
		err := o.client.Chat(ctx, o.toChatRequest(req, true), func(resp olla.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			if !send(ctx, respChan, &models.GenerateContentResponse{
				Content:      resp.Message.Content,
				CreateTime:   resp.CreatedAt,
				ModelVersion: resp.Model,
			}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			send(ctx, respChan, &models.GenerateContentResponse{Err: fmt.Errorf("ollama 流式生成失败: %w", err)})
		}
	}()

	return respChan, nil
}

func (o *Ollama) toChatRequest(req *models.GenerateContentRequest, stream bool) *olla.ChatRequest {
	messages := make([]olla.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, olla.Message{Role: string(m.Role), Content: m.Content})
	}
	model := o.model
	if req.Model != "" {
		model = req.Model
	}
	temperature := o.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	return &olla.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  map[string]interface{}{"temperature": temperature},
	}
}
