package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/pkg/circuitbreaker"
)

type stubLLM struct {
	calls int
	err   error
}

func (s *stubLLM) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.GenerateContentResponse{Content: "ok"}, nil
}

func (s *stubLLM) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *models.GenerateContentResponse, 2)
	ch <- &models.GenerateContentResponse{Content: "he"}
	ch <- &models.GenerateContentResponse{Content: "llo"}
	close(ch)
	return ch, nil
}

var req = &models.GenerateContentRequest{Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}}}

func TestNewGuarded_PassThroughWhenDisabled(t *testing.T) {
	inner := &stubLLM{}
	got, err := NewGuarded(inner, config.MiddlewareConfig{})
	require.NoError(t, err)
	assert.Same(t, inner, got)
}

func TestGuarded_RateLimit(t *testing.T) {
	inner := &stubLLM{}
	g, err := NewGuarded(inner, config.MiddlewareConfig{
		RateLimiter: config.RateLimiterConfig{
			Enabled:     true,
			Algorithm:   "tokenBucket",
			TokenBucket: config.TokenBucketConfig{Rate: 0.001, Capacity: 1},
		},
	})
	require.NoError(t, err)

	_, err = g.GenerateContent(context.Background(), req)
	require.NoError(t, err)
	_, err = g.GenerateContent(context.Background(), req)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, inner.calls)
}

func TestGuarded_CircuitBreaker(t *testing.T) {
	inner := &stubLLM{err: errors.New("upstream down")}
	g, err := NewGuarded(inner, config.MiddlewareConfig{
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true, FailureThreshold: 2, SuccessThreshold: 1, Timeout: "1m"},
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = g.GenerateContentStream(context.Background(), req)
		require.Error(t, err)
	}
	_, err = g.GenerateContent(context.Background(), req)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
}

func TestCollect(t *testing.T) {
	ch, err := (&stubLLM{}).GenerateContentStream(context.Background(), req)
	require.NoError(t, err)
	text, err := Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	failing := make(chan *models.GenerateContentResponse, 2)
	failing <- &models.GenerateContentResponse{Content: "par"}
	failing <- &models.GenerateContentResponse{Err: errors.New("reset")}
	close(failing)
	text, err = Collect(failing)
	assert.EqualError(t, err, "reset")
	assert.Equal(t, "par", text)
}

func TestNewClient_UnsupportedProvider(t *testing.T) {
	_, err := NewClient(context.Background(), config.LLMConfig{Provider: "unknown"})
	assert.ErrorContains(t, err, "不支持的 LLM 提供商")
}

func TestNewClient_OpenAI(t *testing.T) {
	c, err := NewClient(context.Background(), config.LLMConfig{Provider: "openai", Model: "deepseek-chat", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	_, isOpenAI := c.(*OpenAI)
	assert.True(t, isOpenAI)

	_, err = c.GenerateContent(context.Background(), &models.GenerateContentRequest{})
	assert.ErrorIs(t, err, ErrEmptyRequest)
}

func TestOpenAIRequest_Temperature(t *testing.T) {
	o, err := NewOpenAI("deepseek-chat", "", "http://127.0.0.1:1", 0.3)
	require.NoError(t, err)

	req := o.toOpenAIRequest(&models.GenerateContentRequest{Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}}}, true)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.3, *req.Temperature, 1e-6)
	assert.True(t, req.Stream)
	assert.Equal(t, "deepseek-chat", req.Model)

	override := float32(0.9)
	req = o.toOpenAIRequest(&models.GenerateContentRequest{Temperature: &override, Model: "other"}, false)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.9, *req.Temperature, 1e-6)
	assert.Equal(t, "other", req.Model)
}
