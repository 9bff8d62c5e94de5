// Package ratelimiter 提供几种单机限流算法，以及按键（例如用户）隔离的限流器。
package ratelimiter

import (
	"sync"
	"time"
)

// RateLimiter 判断一次请求是否被放行。
type RateLimiter interface {
	Allow() bool
}

// Keyed 为每个键维护独立的限流器，键空闲超过 idle 后被回收。
type Keyed struct {
	newLimiter func() RateLimiter
	idle       time.Duration
	now        func() time.Time

	mu        sync.Mutex
	entries   map[string]*keyedEntry
	lastSweep time.Time
}

type keyedEntry struct {
	limiter  RateLimiter
	lastSeen time.Time
}

// NewKeyed 创建按键限流器，newLimiter 为新出现的键创建限流器。idle <= 0 时使用 10 分钟。
func NewKeyed(newLimiter func() RateLimiter, idle time.Duration) *Keyed {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &Keyed{
		newLimiter: newLimiter,
		idle:       idle,
		now:        time.Now,
		entries:    make(map[string]*keyedEntry),
	}
}

// Allow 判断 key 的这次请求是否被放行。
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	now := k.now()
	if now.Sub(k.lastSweep) >= k.idle {
		k.sweep(now)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{limiter: k.newLimiter()}
		k.entries[key] = e
	}
	e.lastSeen = now
	k.mu.Unlock()
	return e.limiter.Allow()
}

// Len 返回当前跟踪的键数量。
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *Keyed) sweep(now time.Time) {
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) >= k.idle {
			delete(k.entries, key)
		}
	}
	k.lastSweep = now
}
