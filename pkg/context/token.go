// Package context 为 CodePilot 提供上下文组装能力。
//
// 本包实现了 Gather-Prioritize-Assemble 流水线：
// 从编辑器、工作区和诊断信息收集上下文块，按相关性排序，
// 在 Token 预算内拼装进对话消息。
package context

import (
	"github.com/easyops/codepilot-go/pkg/core/message"
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter 定义 Token 计数接口。
type TokenCounter interface {
	// Count 返回给定文本的 Token 数量。
	Count(text string) int

	// CountMessages 返回消息列表的总 Token 数量。
	CountMessages(messages []message.Message) int
}

// EstimatedCounter 使用字符估算实现 Token 计数。
//
// 预算计算统一使用该估算器，保证确定性；计费使用提供商
// 上报的用量，不走估算。
type EstimatedCounter struct{}

// NewEstimatedCounter 创建新的 EstimatedCounter。
func NewEstimatedCounter() *EstimatedCounter {
	return &EstimatedCounter{}
}

// Count 返回估算的 Token 数量（向上取整，长度单调）。
func (c *EstimatedCounter) Count(text string) int {
	return message.EstimateTokens(text)
}

// CountMessages 返回消息列表的估算 Token 数量。
func (c *EstimatedCounter) CountMessages(messages []message.Message) int {
	total := 0
	for _, msg := range messages {
		total += c.Count(msg.Content)
	}
	return total
}

// TiktokenCounter 使用 tiktoken 实现精确的 Token 计数。
// 用于需要对齐提供商计数的场景，预算路径默认不启用。
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// TiktokenOption 配置 TiktokenCounter。
type TiktokenOption func(*TiktokenCounter)

// WithEncodingModel 设置 Token 编码使用的模型。
func WithEncodingModel(model string) TiktokenOption {
	return func(c *TiktokenCounter) {
		c.model = model
	}
}

// NewTiktokenCounter 创建新的 TiktokenCounter。
// 默认使用 cl100k_base 编码（GPT-4、GPT-4o 等使用）。
func NewTiktokenCounter(opts ...TiktokenOption) (*TiktokenCounter, error) {
	c := &TiktokenCounter{
		model: "gpt-4o",
	}

	for _, opt := range opts {
		opt(c)
	}

	encoding, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		// 降级到 cl100k_base 编码
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	c.encoding = encoding
	return c, nil
}

// Count 返回给定文本的 Token 数量。
func (c *TiktokenCounter) Count(text string) int {
	if c.encoding == nil {
		return message.EstimateTokens(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// CountMessages 返回消息列表的总 Token 数量。
// 这会考虑 OpenAI API 中消息格式化的开销。
func (c *TiktokenCounter) CountMessages(messages []message.Message) int {
	tokensPerMessage := 3 // <|start|>{role}\n{content}<|end|>\n

	total := 0
	for _, msg := range messages {
		total += tokensPerMessage
		total += c.Count(string(msg.Role))
		total += c.Count(msg.Content)
	}
	total += 3 // 每个回复都以 <|start|>assistant<|message|> 开头

	return total
}

// DefaultTokenCounter 返回默认的 Token 计数器。
// 预算比较要求确定性，因此默认使用估算器。
func DefaultTokenCounter() TokenCounter {
	return NewEstimatedCounter()
}

// 编译时接口检查
var _ TokenCounter = (*TiktokenCounter)(nil)
var _ TokenCounter = (*EstimatedCounter)(nil)
