package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"AIAssistant/backend/go/internal/models"
)

// OpenAI 是 OpenAI 兼容接口（包括 DeepSeek 等）的 LLM 客户端。
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAI 创建一个新的 OpenAI 客户端，baseURL 为空时使用官方地址。
func NewOpenAI(model, apiKey, baseURL string, temperature float32) (*OpenAI, error) {
	if model == "" {
		return nil, errors.New("openai 模型名称不能为空")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
	}, nil
}

// GenerateContent 使用 OpenAI API 生成内容。
func (o *OpenAI) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	resp, err := o.client.CreateChatCompletion(ctx, o.toOpenAIRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	out := &models.GenerateContentResponse{
		ResponseID:   resp.ID,
		ModelVersion: resp.Model,
		CreateTime:   time.Unix(resp.Created, 0),
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
	}
	return out, nil
}

// GenerateContentStream 使用 OpenAI API 以流式方式生成内容。
func (o *OpenAI) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	stream, err := o.client.CreateChatCompletionStream(ctx, o.toOpenAIRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion stream: %w", err)
	}

	respChan := make(chan *models.GenerateContentResponse)
	go func() {
		defer close(respChan)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				send(ctx, respChan, &models.GenerateContentResponse{Err: fmt.Errorf("读取流式响应失败: %w", err)})
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(ctx, respChan, &models.GenerateContentResponse{
				Content:      resp.Choices[0].Delta.Content,
				ResponseID:   resp.ID,
				ModelVersion: resp.Model,
			}) {
				return
			}
		}
	}()

	return respChan, nil
}

// toOpenAIRequest 将我们的内部请求格式转换为 OpenAI 格式。
func (o *OpenAI) toOpenAIRequest(req *models.GenerateContentRequest, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	model := o.model
	if req.Model != "" {
		model = req.Model
	}
	temperature := o.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: &temperature,
		Stream:      stream,
	}
}
