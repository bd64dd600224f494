package otel

import "go.opentelemetry.io/otel/attribute"

// 预定义的语义属性键
// 遵循 OpenTelemetry 语义约定
const (
	// Pipeline 相关属性
	AttrTurnRequestID = "turn.request_id"
	AttrTurnTaskType  = "turn.task_type"
	AttrTurnCached    = "turn.cached"

	// LLM 相关属性
	AttrLLMProvider         = "llm.provider"
	AttrLLMModel            = "llm.model"
	AttrLLMTemperature      = "llm.temperature"
	AttrLLMMaxTokens        = "llm.max_tokens"
	AttrLLMPromptTokens     = "llm.prompt_tokens"
	AttrLLMCompletionTokens = "llm.completion_tokens"
	AttrLLMTotalTokens      = "llm.total_tokens"

	// Context 相关属性
	AttrContextChunkType  = "context.chunk_type"
	AttrContextTokensUsed = "context.tokens_used"
	AttrContextCompressed = "context.compressed"

	// Cache 相关属性
	AttrCacheKey = "cache.key"
	AttrCacheHit = "cache.hit"

	// Cost 相关属性
	AttrCostAmount = "cost.amount"
	AttrCostState  = "cost.state"

	// Error 相关属性
	AttrErrorType      = "error.type"
	AttrErrorMessage   = "error.message"
	AttrErrorRetryable = "error.retryable"
)

// TurnRequestID 创建轮次请求 ID 属性
func TurnRequestID(id string) attribute.KeyValue {
	return attribute.String(AttrTurnRequestID, id)
}

// TurnTaskType 创建轮次任务类型属性
func TurnTaskType(taskType string) attribute.KeyValue {
	return attribute.String(AttrTurnTaskType, taskType)
}

// LLMProvider 创建 LLM 提供商属性
func LLMProvider(provider string) attribute.KeyValue {
	return attribute.String(AttrLLMProvider, provider)
}

// LLMModel 创建 LLM 模型属性
func LLMModel(model string) attribute.KeyValue {
	return attribute.String(AttrLLMModel, model)
}

// LLMTokens 创建 LLM Token 使用属性
func LLMTokens(prompt, completion, total int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrLLMPromptTokens, prompt),
		attribute.Int(AttrLLMCompletionTokens, completion),
		attribute.Int(AttrLLMTotalTokens, total),
	}
}

// CacheHit 创建缓存命中属性
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CostAmount 创建费用金额属性
func CostAmount(amount float64) attribute.KeyValue {
	return attribute.Float64(AttrCostAmount, amount)
}

// ErrorAttrs 创建错误属性
func ErrorAttrs(errType, message string, retryable bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, message),
		attribute.Bool(AttrErrorRetryable, retryable),
	}
}
