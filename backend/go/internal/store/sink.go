// Package store 实现助手核心使用的持久化：结果日志、助手目录、轮次记录与文件导出。
package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"AIAssistant/backend/go/internal/models"
)

// Sink 是只追加的结果日志。
type Sink interface {
	SaveReport(ctx context.Context, rec *models.ReportRecord) error
	SaveTraining(ctx context.Context, rec *models.TrainingLog) error
}

// MySQLSink 把日志写入 MySQL。
type MySQLSink struct {
	DB *gorm.DB
}

func NewMySQLSink(db *gorm.DB) *MySQLSink {
	return &MySQLSink{DB: db}
}

// Migrate 创建助手核心用到的表。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.AIAssistant{}, &models.ReportRecord{}, &models.TrainingLog{}); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

func (s *MySQLSink) SaveReport(ctx context.Context, rec *models.ReportRecord) error {
	return s.create(ctx, "报告", rec)
}

func (s *MySQLSink) SaveTraining(ctx context.Context, rec *models.TrainingLog) error {
	return s.create(ctx, "训练", rec)
}

func (s *MySQLSink) create(ctx context.Context, kind string, rec interface{}) error {
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("保存%s日志失败: %w", kind, err)
	}
	return nil
}

// NopSink 丢弃所有日志，未配置 MySQL 时使用。
type NopSink struct{}

func (NopSink) SaveReport(context.Context, *models.ReportRecord) error  { return nil }
func (NopSink) SaveTraining(context.Context, *models.TrainingLog) error { return nil }
