package otel

// 流水线发出的指标名称
// 遵循 OpenTelemetry 语义约定
const (
	// Pipeline 指标
	MetricTurns           = "pipeline.turns"                // 计数器: 对话轮次数
	MetricTurnDuration    = "pipeline.turn.duration"        // 直方图: 单轮处理时间(ms)
	MetricTurnErrors      = "pipeline.turn.errors"          // 计数器: 轮次失败次数
	MetricContextTokens   = "pipeline.context.tokens"       // 直方图: 补充上下文占用 Token
	MetricContextCompress = "pipeline.context.compressions" // 计数器: 结构化压缩次数

	// LLM 指标
	MetricLLMRequests         = "llm.requests"          // 计数器: LLM 请求次数
	MetricLLMRequestDuration  = "llm.request.duration"  // 直方图: LLM 请求时间(ms)
	MetricLLMTokensPrompt     = "llm.tokens.prompt"     // 计数器: Prompt Token 总数
	MetricLLMTokensCompletion = "llm.tokens.completion" // 计数器: Completion Token 总数
	MetricLLMErrors           = "llm.errors"            // 计数器: LLM 错误次数

	// Cache 指标
	MetricCacheHits   = "cache.hits"   // 计数器: 缓存命中次数
	MetricCacheMisses = "cache.misses" // 计数器: 缓存未命中次数

	// Cost 指标
	MetricCostRecorded = "cost.recorded" // 直方图: 单次入账金额(USD)
	MetricCostDaily    = "cost.daily"    // 仪表: 当日累计费用(USD)
	MetricCostBlocked  = "cost.blocked"  // 计数器: 因限额拒绝的请求数
)
