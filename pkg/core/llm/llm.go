// Package llm 提供 LLM 提供商的统一接口
package llm

import (
	"context"

	"github.com/easyops/codepilot-go/pkg/core/message"
)

// Provider 定义 LLM 提供商接口
//
// 统一不同后端的调用方式。每个提供商暴露自己的模型目录，
// 并以统一的响应结构返回结果；响应在提供商边界立即归一化，
// 解析失败作为分类错误返回，不做未检查的字段访问。
type Provider interface {
	// Name 返回提供商名称
	Name() string

	// Models 返回该提供商当前可用的模型目录
	Models(ctx context.Context) ([]ModelConfig, error)

	// SendMessage 发送对话请求（非流式）
	SendMessage(ctx context.Context, messages []message.Message, modelID string, opts *ChatOptions) (*Response, error)

	// SendMessageStream 发送对话请求（流式）
	//
	// 返回两个 channel：
	//   - <-chan StreamChunk: 流式响应块
	//   - <-chan error: 错误通道（最多一个错误）
	SendMessageStream(ctx context.Context, messages []message.Message, modelID string, opts *ChatOptions) (<-chan StreamChunk, <-chan error)

	// Close 关闭客户端连接
	Close() error
}

// CostRate 每千 Token 的价格（美元）
type CostRate struct {
	// Input 输入价格
	Input float64 `json:"input"`
	// Output 输出价格
	Output float64 `json:"output"`
}

// ModelConfig 模型目录条目（不可变）
type ModelConfig struct {
	// ID 模型标识，路由时使用
	ID string `json:"id"`
	// Name 展示名称
	Name string `json:"name"`
	// Provider 所属提供商名称
	Provider string `json:"provider"`
	// MaxTokens 模型上下文窗口大小
	MaxTokens int `json:"max_tokens"`
	// CostPer1KTokens 每千 Token 定价
	CostPer1KTokens CostRate `json:"cost_per_1k_tokens"`
	// Capabilities 能力标签
	Capabilities []string `json:"capabilities"`
}

// ChatOptions 对话请求选项
type ChatOptions struct {
	// MaxTokens 最大输出 Token
	MaxTokens int
	// Temperature 采样温度
	Temperature float64
}

// Response 归一化后的 LLM 响应
type Response struct {
	// Content 响应文本内容
	Content string `json:"content"`
	// Usage Token 使用与费用统计（来自提供商上报）
	Usage message.Usage `json:"usage"`
	// Model 实际使用的模型 ID
	Model string `json:"model"`
	// Provider 实际使用的提供商名称
	Provider string `json:"provider"`
	// Cached 是否来自响应缓存
	Cached bool `json:"cached,omitempty"`
	// FinishReason 结束原因
	FinishReason string `json:"finish_reason,omitempty"`
}

// StreamChunk 流式响应块
type StreamChunk struct {
	// Content 内容片段
	Content string `json:"content"`
	// Done 是否完成
	Done bool `json:"done"`
	// FinishReason 结束原因（当 Done=true 时）
	FinishReason string `json:"finish_reason,omitempty"`
	// Usage Token 使用统计（当 Done=true 时）
	Usage *message.Usage `json:"usage,omitempty"`
}

// Cost 按模型静态定价计算一次调用的费用
func Cost(model ModelConfig, usage message.Usage) float64 {
	in := float64(usage.InputTokens) / 1000 * model.CostPer1KTokens.Input
	out := float64(usage.OutputTokens) / 1000 * model.CostPer1KTokens.Output
	return in + out
}
