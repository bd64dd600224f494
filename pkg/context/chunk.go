package context

import (
	"time"

	"github.com/google/uuid"

	"github.com/easyops/codepilot-go/pkg/core/message"
)

// ChunkType 上下文块类型
type ChunkType string

const (
	// ChunkTypeWorkspace 工作区级信息（项目清单、README）
	ChunkTypeWorkspace ChunkType = "workspace"
	// ChunkTypeFile 当前文件内容
	ChunkTypeFile ChunkType = "file"
	// ChunkTypeSelection 编辑器选中内容
	ChunkTypeSelection ChunkType = "selection"
	// ChunkTypeChatHistory 对话历史摘要
	ChunkTypeChatHistory ChunkType = "chat_history"
	// ChunkTypeError 诊断错误信息
	ChunkTypeError ChunkType = "error"
	// ChunkTypeDocumentation 文档片段
	ChunkTypeDocumentation ChunkType = "documentation"
)

// BasePriority 返回类型的固定基础优先级。
func (t ChunkType) BasePriority() int {
	switch t {
	case ChunkTypeSelection:
		return 90
	case ChunkTypeError:
		return 80
	case ChunkTypeFile:
		return 75
	case ChunkTypeWorkspace:
		return 60
	case ChunkTypeDocumentation:
		return 50
	case ChunkTypeChatHistory:
		return 40
	default:
		return 0
	}
}

// IsValid 检查类型是否有效
func (t ChunkType) IsValid() bool {
	switch t {
	case ChunkTypeWorkspace, ChunkTypeFile, ChunkTypeSelection,
		ChunkTypeChatHistory, ChunkTypeError, ChunkTypeDocumentation:
		return true
	default:
		return false
	}
}

// Chunk 一个上下文块
type Chunk struct {
	// ID 唯一标识
	ID string `json:"id"`
	// Content 内容
	Content string `json:"content"`
	// Type 类型
	Type ChunkType `json:"type"`
	// Priority 优先级（0-100，越高越先入选）
	Priority int `json:"priority"`
	// Timestamp 采集时间
	Timestamp time.Time `json:"timestamp"`
	// RelevanceScore 与当前请求的相关性分数（0-100）
	RelevanceScore float64 `json:"relevance_score"`
	// TokenCount 估算的 Token 数
	TokenCount int `json:"token_count"`
	// Source 来源标识（文件路径、诊断 ID 等）
	Source string `json:"source"`
}

// NewChunk 创建上下文块，优先级取类型的基础优先级。
func NewChunk(chunkType ChunkType, content, source string) *Chunk {
	return &Chunk{
		ID:         uuid.NewString(),
		Content:    content,
		Type:       chunkType,
		Priority:   chunkType.BasePriority(),
		Timestamp:  time.Now(),
		TokenCount: message.EstimateTokens(content),
		Source:     source,
	}
}

// Age 返回块的存在时长。
func (c *Chunk) Age() time.Duration {
	return time.Since(c.Timestamp)
}

// DefaultSimilarityThreshold 去重相似度阈值。
// 字符重叠启发式对极短字符串可能过度合并，作为可调常量对待。
const DefaultSimilarityThreshold = 0.8

// Similarity 计算两段文本的字符级相似度（Dice 二元组系数，0-1）。
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) < 2 || len(b) < 2 {
		return 0.0
	}

	bigrams := make(map[string]int)
	for i := 0; i < len(a)-1; i++ {
		bigrams[a[i:i+2]]++
	}

	overlap := 0
	for i := 0; i < len(b)-1; i++ {
		if bigrams[b[i:i+2]] > 0 {
			bigrams[b[i:i+2]]--
			overlap++
		}
	}

	return 2.0 * float64(overlap) / float64(len(a)-1+len(b)-1)
}
