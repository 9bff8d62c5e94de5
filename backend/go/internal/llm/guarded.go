package llm

import (
	"context"
	"errors"
	"fmt"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/pkg/circuitbreaker"
	httpx "AIAssistant/backend/go/pkg/http"
	"AIAssistant/backend/go/pkg/ratelimiter"
)

// ErrRateLimited 表示本地限流拒绝了模型调用。
var ErrRateLimited = errors.New("模型调用过于频繁")

// Guarded 用熔断器和限流器包装一个 LLM 客户端。
// 流式调用只保护建立流的阶段，流中途的错误不计入熔断。
type Guarded struct {
	inner   LLM
	limiter ratelimiter.RateLimiter
	breaker circuitbreaker.CircuitBreaker
}

// NewGuarded 按配置包装客户端，两者均未启用时原样返回。
func NewGuarded(inner LLM, cfg config.MiddlewareConfig) (LLM, error) {
	if !cfg.RateLimiter.Enabled && !cfg.CircuitBreaker.Enabled {
		return inner, nil
	}
	g := &Guarded{inner: inner}
	if cfg.RateLimiter.Enabled {
		limiter, err := httpx.NewRateLimiter(cfg.RateLimiter)
		if err != nil {
			return nil, fmt.Errorf("创建模型限流器失败: %w", err)
		}
		g.limiter = limiter
	}
	if cfg.CircuitBreaker.Enabled {
		breaker, err := httpx.NewCircuitBreaker("llm", cfg.CircuitBreaker)
		if err != nil {
			return nil, fmt.Errorf("创建模型熔断器失败: %w", err)
		}
		g.breaker = breaker
	}
	return g, nil
}

func (g *Guarded) run(fn func() (interface{}, error)) (interface{}, error) {
	if g.limiter != nil && !g.limiter.Allow() {
		return nil, ErrRateLimited
	}
	if g.breaker == nil {
		return fn()
	}
	return g.breaker.Execute(fn)
}

// GenerateContent 实现 LLM 接口。
func (g *Guarded) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	res, err := g.run(func() (interface{}, error) {
		return g.inner.GenerateContent(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*models.GenerateContentResponse), nil
}

// GenerateContentStream 实现 LLM 接口。
func (g *Guarded) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	res, err := g.run(func() (interface{}, error) {
		return g.inner.GenerateContentStream(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(<-chan *models.GenerateContentResponse), nil
}
