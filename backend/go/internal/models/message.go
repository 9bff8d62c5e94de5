package models

import "time"

// SpeakerRole 定义了消息发送者的角色。
type SpeakerRole string

const (
	RoleSystem    SpeakerRole = "system"    // 系统提示词
	RoleUser      SpeakerRole = "user"      // 用户角色
	RoleAssistant SpeakerRole = "assistant" // 助手角色
)

// Message 是一条对话消息。
type Message struct {
	Role    SpeakerRole `json:"role"`
	Content string      `json:"content"`
}

// GenerateContentRequest 定义了生成内容的请求结构。
type GenerateContentRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`       // 为空时使用客户端默认模型
	Temperature *float32  `json:"temperature,omitempty"` // 为空时使用客户端默认温度
}

// GenerateContentResponse 定义了生成内容的响应结构。
// 流式调用时每个分片对应一个响应，Err 不为空表示流异常结束。
type GenerateContentResponse struct {
	Content      string    `json:"content"`
	CreateTime   time.Time `json:"createTime,omitempty"`
	ResponseID   string    `json:"responseId,omitempty"`
	ModelVersion string    `json:"modelVersion,omitempty"`
	Err          error     `json:"-"`
}

// ValidRole 判断角色是否合法。
func ValidRole(r SpeakerRole) bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}
