// Package llmtest 提供测试用的脚本化模型客户端。
package llmtest

import (
	"context"
	"errors"
	"sync"

	"AIAssistant/backend/go/internal/models"
)

// Scripted 按脚本回复请求，并记录所有调用。
// Respond 不为空时优先使用；否则依次消费 Replies，耗尽后返回 Default。
type Scripted struct {
	Respond   func(req *models.GenerateContentRequest) (string, error)
	Replies   []string
	Default   string
	ChunkSize int // 流式分片的字符数，默认 4

	mu       sync.Mutex
	requests []*models.GenerateContentRequest
}

// Calls 返回调用次数。
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests 返回所有请求。
func (s *Scripted) Requests() []*models.GenerateContentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.GenerateContentRequest(nil), s.requests...)
}

func (s *Scripted) next(req *models.GenerateContentRequest) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	respond := s.Respond
	var reply string
	if respond == nil {
		if len(s.Replies) > 0 {
			reply, s.Replies = s.Replies[0], s.Replies[1:]
		} else {
			reply = s.Default
		}
	}
	s.mu.Unlock()
	if respond != nil {
		return respond(req)
	}
	return reply, nil
}

// GenerateContent 实现 llm.LLM。
func (s *Scripted) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	text, err := s.next(req)
	if err != nil {
		return nil, err
	}
	return &models.GenerateContentResponse{Content: text}, nil
}

// GenerateContentStream 实现 llm.LLM，把回复切成固定大小的分片。
func (s *Scripted) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	text, err := s.next(req)
	if err != nil {
		return nil, err
	}
	size := s.ChunkSize
	if size <= 0 {
		size = 4
	}
	ch := make(chan *models.GenerateContentResponse)
	go func() {
		defer close(ch)
		runes := []rune(text)
		for i := 0; i < len(runes); i += size {
			end := i + size
			if end > len(runes) {
				end = len(runes)
			}
			select {
			case ch <- &models.GenerateContentResponse{Content: string(runes[i:end])}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ErrScripted 是脚本中常用的模型错误。
var ErrScripted = errors.New("scripted llm failure")

// SystemPrompt 返回请求中的系统提示词，没有时返回空串。
func SystemPrompt(req *models.GenerateContentRequest) string {
	for _, m := range req.Messages {
		if m.Role == models.RoleSystem {
			return m.Content
		}
	}
	return ""
}

// LastUser 返回最后一条消息的内容。
func LastUser(req *models.GenerateContentRequest) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}
