package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"AIAssistant/backend/go/internal/models"
)

// Gemini 是一个实现了 LLM 接口的结构体，用于与 Gemini API 交互。
// 每次请求都基于传入的消息重新构造会话，客户端本身不保存历史。
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini 创建一个新的 Gemini 客户端。
func NewGemini(ctx context.Context, model, apiKey string, temperature float32) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	return &Gemini{client: client, model: model, temperature: temperature}, nil
}

// GenerateContent 向 Gemini API 发送请求并返回响应。
func (g *Gemini) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	session, last := g.session(req)
	resp, err := session.SendMessage(ctx, last...)
	if err != nil {
		return nil, fmt.Errorf("gemini 生成失败: %w", err)
	}
	return &models.GenerateContentResponse{Content: responseText(resp), ModelVersion: g.model}, nil
}

// GenerateContentStream 以流式方式向 Gemini API 发送请求。
func (g *Gemini) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	session, last := g.session(req)
	iter := session.SendMessageStream(ctx, last...)

	respChan := make(chan *models.GenerateContentResponse)
	go func() {
		defer close(respChan)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				send(ctx, respChan, &models.GenerateContentResponse{Err: fmt.Errorf("gemini 流式生成失败: %w", err)})
				return
			}
			text := responseText(resp)
			if text == "" {
				continue
			}
			if !send(ctx, respChan, &models.GenerateContentResponse{Content: text, ModelVersion: g.model}) {
				return
			}
		}
	}()
	return respChan, nil
}

// Close 释放底层连接。
func (g *Gemini) Close() error {
	return g.client.Close()
}

// session 把消息列表转换为系统指令、历史与最后一条用户消息。
func (g *Gemini) session(req *models.GenerateContentRequest) (*genai.ChatSession, []genai.Part) {
	name := g.model
	if req.Model != "" {
		name = req.Model
	}
	model := g.client.GenerativeModel(name)
	temperature := g.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	model.SetTemperature(temperature)

	var system []string
	var history []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleSystem:
			system = append(system, m.Content)
		case models.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	var last []genai.Part
	if n := len(history); n > 0 {
		last = history[n-1].Parts
		history = history[:n-1]
	} else {
		// 只有系统提示词时，把它作为唯一的用户输入
		last = []genai.Part{genai.Text(strings.Join(system, "\n\n"))}
	}
	session := model.StartChat()
	session.History = history
	return session, last
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	return sb.String()
}
