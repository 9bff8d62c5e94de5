package etcd

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"AIAssistant/backend/go/internal/config"
)

// ServiceDiscovery 基于 etcd 的键值租约实现服务注册与发现。
type ServiceDiscovery struct {
	cli *clientv3.Client
}

// NewServiceDiscovery 连接 etcd。
func NewServiceDiscovery(cfg config.EtcdConfig) (*ServiceDiscovery, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd 地址不能为空")
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("连接 etcd 失败: %w", err)
	}
	return &ServiceDiscovery{cli: cli}, nil
}

// Register 在租约下写入 key，并在后台续约。
// 关闭或向返回的通道发送信号会停止续约并删除 key。
func (s *ServiceDiscovery) Register(ctx context.Context, key, value string, ttl int64) (chan<- struct{}, error) {
	leaseResp, err := s.cli.Grant(ctx, ttl)
	if err != nil {
		return nil, fmt.Errorf("申请租约失败: %w", err)
	}
	if _, err = s.cli.Put(ctx, key, value, clientv3.WithLease(leaseResp.ID)); err != nil {
		return nil, fmt.Errorf("写入 %s 失败: %w", key, err)
	}

	// 续约不应随请求上下文结束
	keepCtx, cancel := context.WithCancel(context.Background())
	keepAliveCh, err := s.cli.KeepAlive(keepCtx, leaseResp.ID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("续约失败: %w", err)
	}

	stop := make(chan struct{})
	go func() {
		defer cancel()
		for {
			select {
			case <-stop:
				s.revoke(key, leaseResp.ID)
				return
			case _, ok := <-keepAliveCh:
				if !ok {
					return
				}
			}
		}
	}()
	return stop, nil
}

func (s *ServiceDiscovery) revoke(key string, lease clientv3.LeaseID) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, _ = s.cli.Delete(ctx, key)
	_, _ = s.cli.Revoke(ctx, lease)
}

// Discover 返回前缀下所有 key 的值。
func (s *ServiceDiscovery) Discover(ctx context.Context, prefix string) ([]string, error) {
	resp, err := s.cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		values = append(values, string(kv.Value))
	}
	return values, nil
}

// Close 关闭 etcd 客户端。
func (s *ServiceDiscovery) Close() error {
	return s.cli.Close()
}
