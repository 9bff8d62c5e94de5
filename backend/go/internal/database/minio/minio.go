package minio

import (
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/pkg/logger"
)

var (
	client  *minio.Client
	bucket  string
	once    sync.Once
	initErr error
)

// GetClient 使用单例模式初始化并返回一个 MinIO 客户端实例，并确保导出文件使用的存储桶存在。
func GetClient(cfg *config.MinIOConfig, log *logger.Logger) (*minio.Client, error) {
	once.Do(func() {
		c, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.Secure,
			Region: cfg.Region,
		})
		if err != nil {
			initErr = fmt.Errorf("无法创建 MinIO 客户端: %w", err)
			return
		}
		if err := EnsureBucket(context.Background(), c, cfg.Bucket, cfg.Region, log); err != nil {
			initErr = err
			return
		}

		log.WithPayload(map[string]interface{}{"endpoint": cfg.Endpoint, "bucket": cfg.Bucket}).Info("成功连接到 MinIO")
		client = c
		bucket = cfg.Bucket
	})

	return client, initErr
}

// EnsureBucket 在存储桶不存在时创建它。
func EnsureBucket(ctx context.Context, c *minio.Client, name, region string, log *logger.Logger) error {
	found, err := c.BucketExists(ctx, name)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 失败: %w", name, err)
	}
	if found {
		return nil
	}
	if log != nil {
		log.Info(fmt.Sprintf("存储桶 %s 不存在，正在创建", name))
	}
	if err := c.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", name, err)
	}
	return nil
}

// HealthCheck 检查导出存储桶是否可访问。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("MinIO 客户端未初始化")
	}
	if _, err := client.BucketExists(ctx, bucket); err != nil {
		return fmt.Errorf("MinIO 健康检查失败: %w", err)
	}
	return nil
}
