package models

import "time"

// TurnLogEntry 定义了发送到 Kafka 的轮次事件日志的统一结构。
type TurnLogEntry struct {
	TurnID        string      `json:"turn_id"`
	CorrelationID string      `json:"correlation_id"`
	Sequence      int         `json:"sequence"`
	Timestamp     time.Time   `json:"timestamp"`
	Status        EventStatus `json:"status,omitempty"`
	Message       string      `json:"message,omitempty"`
	Content       *Event      `json:"content,omitempty"`
}
