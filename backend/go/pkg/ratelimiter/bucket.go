package ratelimiter

import (
	"sync"
	"time"
)

// TokenBucket 按固定速率生成令牌，允许不超过 capacity 的突发。初始为满桶。
type TokenBucket struct {
	rate     float64 // 每秒生成的令牌数
	capacity float64
	tokens   float64
	last     time.Time
	now      func() time.Time
	mutex    sync.Mutex
}

func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	tb := &TokenBucket{rate: rate, capacity: float64(capacity), tokens: float64(capacity), now: time.Now}
	tb.last = tb.now()
	return tb
}

func (tb *TokenBucket) Allow() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := tb.now()
	if elapsed := now.Sub(tb.last); elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed.Seconds()*tb.rate)
		tb.last = now
	}
	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

// LeakyBucket 以固定速率漏出请求，桶满时拒绝，用来平滑突发。
type LeakyBucket struct {
	rate     float64 // 每秒漏出的请求数
	capacity float64
	level    float64
	last     time.Time
	now      func() time.Time
	mutex    sync.Mutex
}

func NewLeakyBucket(rate float64, capacity int) *LeakyBucket {
	lb := &LeakyBucket{rate: rate, capacity: float64(capacity), now: time.Now}
	lb.last = lb.now()
	return lb
}

func (lb *LeakyBucket) Allow() bool {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	now := lb.now()
	if elapsed := now.Sub(lb.last); elapsed > 0 {
		lb.level = max(0, lb.level-elapsed.Seconds()*lb.rate)
		lb.last = now
	}
	if lb.level >= lb.capacity {
		return false
	}
	lb.level++
	return true
}
