package http

import (
	"fmt"
	"time"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/pkg/circuitbreaker"
	"AIAssistant/backend/go/pkg/metrics"
	"AIAssistant/backend/go/pkg/ratelimiter"
)

// NewRateLimiter 按配置创建限流器，算法为空时使用令牌桶。
func NewRateLimiter(cfg config.RateLimiterConfig) (ratelimiter.RateLimiter, error) {
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = "tokenBucket"
	}

	switch algorithm {
	case "tokenBucket":
		conf := cfg.TokenBucket
		return ratelimiter.NewTokenBucket(conf.Rate, conf.Capacity), nil
	case "leakyBucket":
		conf := cfg.LeakyBucket
		return ratelimiter.NewLeakyBucket(conf.Rate, conf.Capacity), nil
	case "fixedWindow":
		conf := cfg.FixedWindow
		window, err := time.ParseDuration(conf.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid fixedWindow duration: %w", err)
		}
		return ratelimiter.NewFixedWindowCounter(conf.Limit, window), nil
	case "slidingLog":
		conf := cfg.SlidingLog
		window, err := time.ParseDuration(conf.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid slidingLog duration: %w", err)
		}
		return ratelimiter.NewSlidingWindowLog(conf.Limit, window), nil
	case "slidingCounter":
		conf := cfg.SlidingCounter
		window, err := time.ParseDuration(conf.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid slidingCounter duration: %w", err)
		}
		return ratelimiter.NewSlidingWindowCounter(conf.Limit, window, conf.NumBuckets), nil
	default:
		return nil, fmt.Errorf("unknown rate limiter algorithm: %s", cfg.Algorithm)
	}
}

// NewKeyedRateLimiter 按配置为每个键创建独立的限流器。
func NewKeyedRateLimiter(cfg config.RateLimiterConfig) (*ratelimiter.Keyed, error) {
	// 先校验一次配置，之后的创建不会再失败
	if _, err := NewRateLimiter(cfg); err != nil {
		return nil, err
	}
	return ratelimiter.NewKeyed(func() ratelimiter.RateLimiter {
		l, _ := NewRateLimiter(cfg)
		return l
	}, 0), nil
}

// NewCircuitBreaker 按配置创建熔断器，状态变化写入 assistant_circuit_breaker_state 指标。
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig) (circuitbreaker.CircuitBreaker, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	m := metrics.Default()
	m.ObserveBreakerState(name, int(circuitbreaker.Closed))
	return circuitbreaker.New(cfg.FailureThreshold, cfg.SuccessThreshold, timeout,
		circuitbreaker.WithName(name),
		circuitbreaker.WithStateHook(func(name string, _, to circuitbreaker.State) {
			m.ObserveBreakerState(name, int(to))
		}),
	), nil
}
