package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/pkg/logger"
)

var (
	client  *mongo.Client
	once    sync.Once
	initErr error
)

// ClientOptions 把配置转换为驱动选项。
func ClientOptions(cfg *config.MongoConfig) (*options.ClientOptions, time.Duration, error) {
	opts := options.Client().ApplyURI(cfg.Address).SetAppName("ai-assistant")
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password})
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	timeout := 10 * time.Second
	if cfg.ConnectTimeout != "" {
		d, err := time.ParseDuration(cfg.ConnectTimeout)
		if err != nil {
			return nil, 0, fmt.Errorf("无效的 MongoDB connectTimeout: %w", err)
		}
		timeout = d
	}
	opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	return opts, timeout, nil
}

// GetClient 使用单例模式初始化并返回一个 MongoDB 客户端实例。
func GetClient(cfg *config.MongoConfig, log *logger.Logger) (*mongo.Client, error) {
	once.Do(func() {
		opts, timeout, err := ClientOptions(cfg)
		if err != nil {
			initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		c, err := mongo.Connect(ctx, opts)
		if err != nil {
			initErr = fmt.Errorf("无法连接到 MongoDB: %w", err)
			return
		}
		if err = c.Ping(ctx, nil); err != nil {
			_ = c.Disconnect(context.Background())
			initErr = fmt.Errorf("无法 Ping MongoDB: %w", err)
			return
		}

		log.WithPayload(map[string]interface{}{"database": cfg.Database}).Info("成功连接到 MongoDB")
		client = c
	})

	return client, initErr
}

// Database 返回配置的数据库，首次调用时建立连接。
func Database(cfg *config.MongoConfig, log *logger.Logger) (*mongo.Database, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("未配置 MongoDB 数据库名")
	}
	c, err := GetClient(cfg, log)
	if err != nil {
		return nil, err
	}
	return c.Database(cfg.Database), nil
}

// Close 断开单例的 MongoDB 客户端连接。
func Close(ctx context.Context) error {
	if client != nil {
		return client.Disconnect(ctx)
	}
	return nil
}

// HealthCheck 检查 MongoDB 连接的健康状况。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("MongoDB 客户端未初始化")
	}
	return client.Ping(ctx, nil)
}
