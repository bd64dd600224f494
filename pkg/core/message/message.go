// Package message 定义对话消息相关的类型
package message

import (
	"time"
)

// Role 表示消息的角色类型
type Role string

const (
	// RoleSystem 系统消息
	RoleSystem Role = "system"
	// RoleUser 用户消息
	RoleUser Role = "user"
	// RoleAssistant AI 助手消息
	RoleAssistant Role = "assistant"
)

// IsValid 检查 Role 是否为有效值
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message 表示对话中的一条消息
//
// 对话历史是追加式的，由调用方持有；流水线不修改用户消息内容。
type Message struct {
	// ID 消息唯一标识
	ID string `json:"id,omitempty"`
	// Role 消息角色
	Role Role `json:"role"`
	// Content 消息内容
	Content string `json:"content"`
	// EmbeddedContext 标记该消息已包含组装好的上下文。
	// 上下文组装器遇到带此标记的消息时直接透传，不再追加上下文。
	EmbeddedContext bool `json:"embedded_context,omitempty"`
	// Timestamp 时间戳
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Usage Token 使用与费用统计
//
// InputTokens/OutputTokens 来自提供商上报，计费只使用上报值，
// 不使用本地估算。
type Usage struct {
	// InputTokens 输入 Token 数
	InputTokens int `json:"input_tokens"`
	// OutputTokens 输出 Token 数
	OutputTokens int `json:"output_tokens"`
	// TotalTokens 总 Token 数
	TotalTokens int `json:"total_tokens"`
	// TotalCost 本次调用的费用（美元）
	TotalCost float64 `json:"total_cost"`
}

// NewMessage 创建新消息
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage 创建系统消息
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage 创建用户消息
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage 创建助手消息
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// Validate 验证消息是否有效
func (m *Message) Validate() error {
	if !m.Role.IsValid() {
		return ErrInvalidRole
	}
	if m.Content == "" {
		return ErrEmptyContent
	}
	return nil
}
