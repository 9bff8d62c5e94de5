package models

import (
	"time"
)

// TurnStatus 定义了对话轮次的几种可能状态
type TurnStatus string

const (
	TurnStatusPending   TurnStatus = "pending"
	TurnStatusRunning   TurnStatus = "running"
	TurnStatusSuccess   TurnStatus = "success"
	TurnStatusFailed    TurnStatus = "failed"
	TurnStatusCancelled TurnStatus = "cancelled"
)

// TurnRecord 代表一个持久化的对话轮次记录
type TurnRecord struct {
	ID          string          `bson:"_id"`
	UserID      string          `bson:"user_id"`
	Query       string          `bson:"query"`
	Action      string          `bson:"action,omitempty"`
	Handler     string          `bson:"handler,omitempty"`
	Status      TurnStatus      `bson:"status"`
	EventCount  int             `bson:"event_count"`
	File        *FileDescriptor `bson:"file,omitempty"`
	Error       string          `bson:"error,omitempty"`
	SubmittedAt time.Time       `bson:"submitted_at"`
	CompletedAt time.Time       `bson:"completed_at,omitempty"`
}
