package orchestrator

import (
	"context"
	"time"

	"AIAssistant/backend/go/internal/cache"
	"AIAssistant/backend/go/internal/models"
)

const turnCachePrefix = "turn_"

// Fingerprint 计算轮次的缓存键：处理方式、问题、影响输出的配置与历史对话。
// 没有历史与空历史得到相同的结果。
func Fingerprint(turn *Turn) (string, error) {
	handler := turn.Action
	if handler == "" {
		handler = "auto"
	}
	opts := turn.Options
	if opts == nil {
		def := models.DefaultTurnOptions()
		opts = &def
	}
	params := opts.Fingerprint()
	history := turn.History
	if history == nil {
		history = []models.Message{}
	}
	params["history"] = history

	fp, err := cache.Fingerprint(map[string]interface{}{
		"handler": handler,
		"query":   turn.Query,
		"params":  params,
	})
	if err != nil {
		return "", err
	}
	return turnCachePrefix + fp, nil
}

// replay 读取缓存的事件，未命中时返回 nil。
func (o *Orchestrator) replay(ctx context.Context, key string) ([]*models.Event, bool) {
	var events []*models.Event
	ok, err := cache.GetJSON(ctx, o.cache, key, &events)
	if err != nil {
		o.log.WithError(models.ErrorInfo{Message: err.Error(), Type: "cache_error"}).Warn("读取轮次缓存失败")
		return nil, false
	}
	return events, ok && len(events) > 0
}

// store 在轮次成功结束时写入缓存，失败只记录日志。
func (o *Orchestrator) store(ctx context.Context, key string, events []*models.Event, ttl int) {
	if len(events) == 0 || ttl <= 0 {
		return
	}
	last := events[len(events)-1]
	if last.Type != models.EventFinal && last.Type != models.EventCompleted {
		return
	}
	if err := cache.SetJSON(ctx, o.cache, key, events, time.Duration(ttl)*time.Second); err != nil {
		o.log.WithError(models.ErrorInfo{Message: err.Error(), Type: "cache_error"}).Warn("写入轮次缓存失败")
	}
}
