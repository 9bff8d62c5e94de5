package cache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry 是缓存中保存的数据。
type entry struct {
	value      []byte
	expiration time.Time // 零值表示永不过期
}

// MemoryCache 是进程内的 LRU 缓存，在没有 Redis 时使用。
// 按条目数和总字节数两种方式限制容量，每个条目有自己的过期时间。
type MemoryCache struct {
	maxBytes int
	items    *lru.Cache[string, entry]
	curBytes int
	lock     sync.Mutex
	now      func() time.Time
}

// NewMemoryCache 创建进程内缓存，capacity 与 maxBytes 至少设置一个。
func NewMemoryCache(capacity, maxBytes int) (*MemoryCache, error) {
	if capacity <= 0 && maxBytes <= 0 {
		return nil, fmt.Errorf("必须设置 capacity 或 maxBytes 中的至少一个")
	}
	if capacity <= 0 {
		capacity = math.MaxInt32
	}
	c := &MemoryCache{maxBytes: maxBytes, now: time.Now}
	items, err := lru.NewWithEvict(capacity, func(_ string, e entry) {
		c.curBytes -= len(e.value)
	})
	if err != nil {
		return nil, fmt.Errorf("创建 LRU 缓存失败: %w", err)
	}
	c.items = items
	return c, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	e, ok := c.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	// 被动淘汰过期条目
	if !e.expiration.IsZero() && c.now().After(e.expiration) {
		c.items.Remove(key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	value = append([]byte(nil), value...)

	// 覆盖已有键不会触发淘汰回调，字节数需要手动修正
	if old, ok := c.items.Peek(key); ok {
		c.curBytes -= len(old.value)
	}
	c.curBytes += len(value)
	c.items.Add(key, entry{value: value, expiration: exp})

	// 一个大条目可能需要淘汰多个旧条目
	for c.maxBytes > 0 && c.curBytes > c.maxBytes && c.items.Len() > 0 {
		c.items.RemoveOldest()
	}
	return nil
}

// Len 返回当前条目数。
func (c *MemoryCache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.items.Len()
}
