package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/pkg/logger"
)

// KafkaClient 持有 Kafka 管理连接与配置的单例实例。
type KafkaClient struct {
	Conn   *kafka.Conn
	Config *config.KafkaConfig
}

var (
	client  *KafkaClient
	once    sync.Once
	initErr error
)

// GetClient 使用单例模式初始化并返回一个 KafkaClient 实例。
// 首次调用时，它会连接到 Kafka 并根据配置自动创建所有必需的主题，事件主题总是包含在内。
func GetClient(cfg *config.KafkaConfig, log *logger.Logger) (*KafkaClient, error) {
	once.Do(func() {
		if len(cfg.Brokers) == 0 {
			initErr = fmt.Errorf("未配置 Kafka brokers")
			return
		}

		conn, err := kafka.Dial("tcp", cfg.Brokers[0])
		if err != nil {
			initErr = fmt.Errorf("kafka 初始化连接失败: %w", err)
			return
		}

		partitions, err := conn.ReadPartitions()
		if err != nil {
			initErr = fmt.Errorf("无法读取 Kafka 分区信息: %w", err)
			conn.Close()
			return
		}
		existing := make(map[string]struct{})
		for _, p := range partitions {
			existing[p.Topic] = struct{}{}
		}

		var toCreate []kafka.TopicConfig
		for _, topic := range requiredTopics(cfg) {
			if _, ok := existing[topic]; !ok {
				toCreate = append(toCreate, kafka.TopicConfig{
					Topic:             topic,
					NumPartitions:     1,
					ReplicationFactor: 1,
				})
			}
		}
		if len(toCreate) > 0 {
			if err := conn.CreateTopics(toCreate...); err != nil {
				initErr = fmt.Errorf("自动创建 Kafka 主题失败: %w", err)
				conn.Close()
				return
			}
			log.Info(fmt.Sprintf("成功创建 %d 个 Kafka 主题", len(toCreate)))
		}

		log.Info("成功初始化 Kafka 客户端")
		client = &KafkaClient{Conn: conn, Config: cfg}
	})

	return client, initErr
}

// requiredTopics 返回去重后的主题列表。
func requiredTopics(cfg *config.KafkaConfig) []string {
	seen := make(map[string]bool)
	var topics []string
	for _, t := range append(append([]string(nil), cfg.Topics...), EventTopic(cfg)) {
		if t != "" && !seen[t] {
			seen[t] = true
			topics = append(topics, t)
		}
	}
	return topics
}

// Close 安全地关闭管理连接。
func (c *KafkaClient) Close() error {
	if c == nil || c.Conn == nil {
		return nil
	}
	if err := c.Conn.Close(); err != nil {
		return fmt.Errorf("关闭 Kafka 管理连接失败: %w", err)
	}
	return nil
}

// HealthCheck 检查 Kafka 连接的健康状况。
func (c *KafkaClient) HealthCheck(ctx context.Context) error {
	if c == nil || c.Conn == nil {
		return fmt.Errorf("kafka 客户端未初始化，无法进行健康检查")
	}
	_, err := c.Conn.Controller()
	return err
}

// ControllerAddr 返回 Kafka 控制器的地址。
func (c *KafkaClient) ControllerAddr() (string, error) {
	if c == nil || c.Conn == nil {
		return "", fmt.Errorf("kafka 客户端未初始化")
	}
	controller, err := c.Conn.Controller()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)), nil
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
}
