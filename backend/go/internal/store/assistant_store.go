package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"AIAssistant/backend/go/internal/cache"
	"AIAssistant/backend/go/internal/models"
)

const assistantCachePrefix = "assistant_"

// AssistantStore 从 ai_assistant 表查询启用的助手，按 ID 的查询结果会写入缓存。
type AssistantStore struct {
	DB    *gorm.DB
	Cache cache.Cache
	TTL   time.Duration
}

func NewAssistantStore(db *gorm.DB, c cache.Cache, ttl time.Duration) *AssistantStore {
	return &AssistantStore{DB: db, Cache: c, TTL: ttl}
}

// Get 按 ID 查询，ID 不是数字或不存在时返回 nil, nil。
func (s *AssistantStore) Get(ctx context.Context, id string) (*models.Assistant, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return nil, nil
	}
	key := assistantCachePrefix + id
	if s.Cache != nil {
		var cached models.Assistant
		if ok, err := cache.GetJSON(ctx, s.Cache, key, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	var row models.AIAssistant
	err = s.DB.WithContext(ctx).Where("enabled = ?", true).First(&row, n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询助手失败: %w", err)
	}
	view := row.View()
	if s.Cache != nil && s.TTL > 0 {
		_ = cache.SetJSON(ctx, s.Cache, key, view, s.TTL)
	}
	return view, nil
}

// FindByName 按名称查询。
func (s *AssistantStore) FindByName(ctx context.Context, name string) (*models.Assistant, error) {
	var row models.AIAssistant
	err := s.DB.WithContext(ctx).Where("name = ? AND enabled = ?", name, true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询助手失败: %w", err)
	}
	return row.View(), nil
}

// List 返回所有启用的助手。
func (s *AssistantStore) List(ctx context.Context) ([]*models.Assistant, error) {
	var rows []models.AIAssistant
	if err := s.DB.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询助手列表失败: %w", err)
	}
	out := make([]*models.Assistant, len(rows))
	for i := range rows {
		out[i] = rows[i].View()
	}
	return out, nil
}
