// Package retry 提供指数退避重试。
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config 控制重试行为。第 n 次失败后等待 BaseDelay * 2^n，不加抖动。
type Config struct {
	Attempts  int           // 最多执行次数，不大于 0 时只执行一次
	BaseDelay time.Duration // 默认 1s
	// Retryable 返回 false 的错误立即返回，为空时所有错误都重试
	Retryable func(error) bool
	// Sleep 可替换，测试中用来跳过等待
	Sleep func(ctx context.Context, d time.Duration) error
}

// Delay 返回第 attempt 次（从 0 开始）失败后的等待时间。
func (c Config) Delay(attempt int) time.Duration {
	base := c.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	return base << uint(attempt)
}

// Do 执行 fn，失败时按 Config 重试，返回最后一次的错误。
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = contextSleep
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}
		if err := sleep(ctx, cfg.Delay(attempt)); err != nil {
			return fmt.Errorf("context cancelled during retry: %w", err)
		}
	}
	return lastErr
}

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
