package dataquery

import (
	"context"
	"time"

	"AIAssistant/backend/go/internal/cache"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/pkg/logger"
	"AIAssistant/backend/go/pkg/metrics"
)

// CacheKeyPrefix 是查询去重缓存的键前缀。
const CacheKeyPrefix = "mcp_request_"

// Cached 对相同的查询请求复用结果，只缓存成功的结果。缓存故障只记录日志。
type Cached struct {
	inner Client
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCached 包装 inner，ttl 不大于 0 时直接返回 inner。
func NewCached(inner Client, c cache.Cache, ttl time.Duration, log *logger.Logger) Client {
	if c == nil || ttl <= 0 {
		return inner
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Cached{inner: inner, cache: c, ttl: ttl, log: log.WithComponent("dataquery_cache")}
}

func (c *Cached) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error) {
	if req == nil {
		return c.inner.Query(ctx, req)
	}
	key, err := cache.MD5Key(CacheKeyPrefix, Body(req))
	if err != nil {
		return c.inner.Query(ctx, req)
	}

	var hit models.QueryResult
	ok, err := cache.GetJSON(ctx, c.cache, key, &hit)
	if err != nil {
		c.log.WithError(models.ErrorInfo{Message: err.Error(), Type: "cache_get"}).Warn("读取查询缓存失败")
	}
	metrics.Default().ObserveCache("dataquery", ok)
	if ok {
		return &hit, nil
	}

	result, err := c.inner.Query(ctx, req)
	if err != nil || result == nil || !result.Success {
		return result, err
	}
	if err := cache.SetJSON(ctx, c.cache, key, result, c.ttl); err != nil {
		c.log.WithError(models.ErrorInfo{Message: err.Error(), Type: "cache_set"}).Warn("写入查询缓存失败")
	}
	return result, nil
}
