package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/internal/models"
)

// DefaultEventTopic 是轮次事件默认发布的主题。
const DefaultEventTopic = "assistant_events"

// EventTopic 返回配置的事件主题。
func EventTopic(cfg *config.KafkaConfig) string {
	if cfg.EventTopic != "" {
		return cfg.EventTopic
	}
	return DefaultEventTopic
}

// MessageWriter 是 kafka.Writer 中发布器用到的部分。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher 把轮次的每个线上事件作为 TurnLogEntry 发布到 Kafka，消息键为轮次 ID，
// 同一轮次的事件落在同一分区并保持顺序。
type EventPublisher struct {
	writer MessageWriter
	now    func() time.Time
}

// NewEventPublisher 创建一个写入事件主题的发布器。
func NewEventPublisher(client *KafkaClient) *EventPublisher {
	return NewEventPublisherWithWriter(newWriter(client.Config.Brokers, EventTopic(client.Config)))
}

func NewEventPublisherWithWriter(w MessageWriter) *EventPublisher {
	return &EventPublisher{writer: w, now: time.Now}
}

// Publish 序列化事件并发送。
func (p *EventPublisher) Publish(ctx context.Context, turnID, correlationID string, seq int, ev *models.Event) error {
	entry := &models.TurnLogEntry{
		TurnID:        turnID,
		CorrelationID: correlationID,
		Sequence:      seq,
		Timestamp:     p.now(),
		Status:        ev.Status,
		Message:       ev.Message,
		Content:       ev,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化轮次事件失败: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(turnID), Value: data}); err != nil {
		return fmt.Errorf("发布轮次事件失败: %w", err)
	}
	return nil
}

// Close 关闭底层的 writer 连接。
func (p *EventPublisher) Close() error {
	return p.writer.Close()
}
