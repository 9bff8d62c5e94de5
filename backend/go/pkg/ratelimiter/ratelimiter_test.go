package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func allowN(l RateLimiter, n int) int {
	ok := 0
	for i := 0; i < n; i++ {
		if l.Allow() {
			ok++
		}
	}
	return ok
}

func TestTokenBucket(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	tb := NewTokenBucket(2, 3)
	tb.now, tb.last = clk.now, clk.t

	assert.Equal(t, 3, allowN(tb, 5))
	clk.advance(500 * time.Millisecond)
	assert.Equal(t, 1, allowN(tb, 5))
	clk.advance(time.Hour)
	assert.Equal(t, 3, allowN(tb, 5), "补充的令牌不超过容量")
}

func TestLeakyBucket(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	lb := NewLeakyBucket(1, 2)
	lb.now, lb.last = clk.now, clk.t

	assert.Equal(t, 2, allowN(lb, 4))
	clk.advance(time.Second)
	assert.Equal(t, 1, allowN(lb, 4))
}

func TestFixedWindowCounter(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	fw := NewFixedWindowCounter(2, time.Minute)
	fw.now, fw.start = clk.now, clk.t

	assert.Equal(t, 2, allowN(fw, 3))
	clk.advance(59 * time.Second)
	assert.False(t, fw.Allow())
	clk.advance(time.Second)
	assert.Equal(t, 2, allowN(fw, 3))
}

func TestSlidingWindowLog(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	sl := NewSlidingWindowLog(2, time.Minute)
	sl.now = clk.now

	assert.True(t, sl.Allow())
	clk.advance(30 * time.Second)
	assert.True(t, sl.Allow())
	assert.False(t, sl.Allow())
	clk.advance(30 * time.Second)
	assert.True(t, sl.Allow(), "第一条记录已滑出窗口")
	assert.False(t, sl.Allow())
}

func TestSlidingWindowCounter(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	sc := NewSlidingWindowCounter(3, time.Minute, 6)
	sc.now, sc.last = clk.now, clk.t

	assert.Equal(t, 3, allowN(sc, 5))
	clk.advance(30 * time.Second)
	assert.False(t, sc.Allow())
	clk.advance(time.Minute)
	assert.Equal(t, 3, allowN(sc, 5))
}

func TestKeyedIsolatesKeysAndSweeps(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	k := NewKeyed(func() RateLimiter {
		fw := NewFixedWindowCounter(1, time.Hour)
		fw.now, fw.start = clk.now, clk.t
		return fw
	}, time.Minute)
	k.now = clk.now

	assert.True(t, k.Allow("alice"))
	assert.False(t, k.Allow("alice"))
	assert.True(t, k.Allow("bob"))
	assert.Equal(t, 2, k.Len())

	clk.advance(2 * time.Minute)
	assert.True(t, k.Allow("carol"))
	assert.Equal(t, 1, k.Len(), "空闲的键被回收")
}
