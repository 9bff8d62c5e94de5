package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/pkg/logger"
)

// DefaultKeyPrefix 是未配置前缀时缓存键使用的前缀。
const DefaultKeyPrefix = "assistant:"

var (
	client  *redis.Client
	once    sync.Once
	initErr error
)

// Options 把配置转换为驱动选项，dialTimeout 无法解析时返回错误。
func Options(cfg *config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.DialTimeout != "" {
		d, err := time.ParseDuration(cfg.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("无效的 Redis dialTimeout: %w", err)
		}
		opts.DialTimeout = d
	}
	return opts, nil
}

// KeyPrefix 返回缓存键前缀。
func KeyPrefix(cfg *config.RedisConfig) string {
	if cfg.KeyPrefix == "" {
		return DefaultKeyPrefix
	}
	return cfg.KeyPrefix
}

// GetClient 使用单例模式初始化并返回一个 Redis 客户端实例，供轮次缓存、助手缓存与查询去重共用。
func GetClient(cfg *config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	once.Do(func() {
		opts, err := Options(cfg)
		if err != nil {
			initErr = err
			return
		}
		rdb := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			initErr = fmt.Errorf("无法连接到 Redis %s: %w", cfg.Address, err)
			return
		}

		log.WithPayload(map[string]interface{}{"address": cfg.Address, "db": cfg.DB}).Info("成功连接到 Redis")
		client = rdb
	})

	return client, initErr
}

// Close 关闭单例的 Redis 连接。
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// HealthCheck 检查 Redis 连接，同时报告连接池是否耗尽。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("Redis 客户端未初始化")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return err
	}
	if st := client.PoolStats(); st.Timeouts > 0 && st.IdleConns == 0 && st.TotalConns >= uint32(client.Options().PoolSize) {
		return fmt.Errorf("Redis 连接池已耗尽: %d/%d", st.TotalConns, client.Options().PoolSize)
	}
	return nil
}
