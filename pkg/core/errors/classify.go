package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code 表示失败分类代码
type Code string

const (
	// CodeNetworkError 网络失败（可重试）
	CodeNetworkError Code = "NETWORK_ERROR"
	// CodeAPIKeyInvalid API 密钥无效（终止性）
	CodeAPIKeyInvalid Code = "API_KEY_INVALID"
	// CodeRateLimitExceeded 请求被限速（可重试）
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	// CodeModelNotAvailable 模型不可用（可重试）
	CodeModelNotAvailable Code = "MODEL_NOT_AVAILABLE"
	// CodeContextTooLarge 上下文超长（终止性）
	CodeContextTooLarge Code = "CONTEXT_TOO_LARGE"
	// CodeCostLimitExceeded 费用上限超出（终止性）
	CodeCostLimitExceeded Code = "COST_LIMIT_EXCEEDED"
	// CodeUnknown 未知错误（终止性）
	CodeUnknown Code = "UNKNOWN_ERROR"
)

// Details 描述一个失败分类的静态信息
type Details struct {
	// Code 分类代码
	Code Code
	// Message 内部描述
	Message string
	// UserMessage 面向用户的提示
	UserMessage string
	// Suggestion 建议的处理方式
	Suggestion string
	// IsRetryable 是否可重试
	IsRetryable bool
}

// catalog 分类代码到静态描述的映射
var catalog = map[Code]Details{
	CodeNetworkError: {
		Code:        CodeNetworkError,
		Message:     "network request failed",
		UserMessage: "网络连接失败",
		Suggestion:  "请检查网络连接后重试",
		IsRetryable: true,
	},
	CodeAPIKeyInvalid: {
		Code:        CodeAPIKeyInvalid,
		Message:     "authentication failed",
		UserMessage: "API 密钥无效或已过期",
		Suggestion:  "请检查提供商的 API 密钥配置",
		IsRetryable: false,
	},
	CodeRateLimitExceeded: {
		Code:        CodeRateLimitExceeded,
		Message:     "rate limit exceeded",
		UserMessage: "请求频率超出限制",
		Suggestion:  "请稍后重试，或降低请求频率",
		IsRetryable: true,
	},
	CodeModelNotAvailable: {
		Code:        CodeModelNotAvailable,
		Message:     "model not available",
		UserMessage: "所选模型当前不可用",
		Suggestion:  "请换用其他模型或稍后重试",
		IsRetryable: true,
	},
	CodeContextTooLarge: {
		Code:        CodeContextTooLarge,
		Message:     "context exceeds model limit",
		UserMessage: "上下文长度超出模型限制",
		Suggestion:  "请缩短输入内容或开启新会话",
		IsRetryable: false,
	},
	CodeCostLimitExceeded: {
		Code:        CodeCostLimitExceeded,
		Message:     "daily cost limit exceeded",
		UserMessage: "今日费用已达上限",
		Suggestion:  "费用限额将在次日重置，或调整限额配置",
		IsRetryable: false,
	},
	CodeUnknown: {
		Code:        CodeUnknown,
		Message:     "unexpected error",
		UserMessage: "发生未知错误",
		Suggestion:  "请重试，若持续失败请查看日志",
		IsRetryable: false,
	},
}

// Details 返回分类代码的静态描述
func (c Code) Details() Details {
	if d, ok := catalog[c]; ok {
		return d
	}
	return catalog[CodeUnknown]
}

// classifyRule 一条有序分类规则：错误文本命中任一关键词即匹配
type classifyRule struct {
	code     Code
	keywords []string
}

// classifyRules 有序规则表，先匹配者生效
var classifyRules = []classifyRule{
	{CodeNetworkError, []string{
		"network", "timeout", "timed out", "connection refused",
		"econnrefused", "econnreset", "no such host", "dns",
	}},
	{CodeAPIKeyInvalid, []string{
		"401", "403", "unauthorized", "forbidden", "api key",
		"invalid key", "authentication",
	}},
	{CodeRateLimitExceeded, []string{
		"429", "rate limit", "too many requests",
	}},
	{CodeModelNotAvailable, []string{
		"404", "503", "unavailable", "model not found", "no such model",
	}},
	{CodeContextTooLarge, []string{
		"413", "context length", "context window", "token limit",
		"maximum context", "context_length_exceeded",
	}},
	{CodeCostLimitExceeded, []string{
		"cost limit", "daily limit", "spend limit",
	}},
}

// Classify 将任意错误映射到唯一的失败分类
//
// 先检查框架哨兵错误，再按有序规则表对错误文本做关键词匹配，
// 都未命中则归为 CodeUnknown。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}

	// 哨兵错误优先，避免依赖错误文本
	switch {
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimitExceeded
	case errors.Is(err, ErrInvalidAPIKey):
		return CodeAPIKeyInvalid
	case errors.Is(err, ErrModelNotFound), errors.Is(err, ErrProviderUnavailable):
		return CodeModelNotAvailable
	case errors.Is(err, ErrTokenLimitExceeded):
		return CodeContextTooLarge
	case errors.Is(err, ErrCostLimitExceeded):
		return CodeCostLimitExceeded
	case errors.Is(err, ErrTimeout):
		return CodeNetworkError
	}

	text := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.code
			}
		}
	}

	return CodeUnknown
}

// ClassifiedError 携带分类与场景信息的错误
//
// 原始错误只写入日志，不向用户展示。
type ClassifiedError struct {
	// Code 分类代码
	Code Code
	// Context 发生错误的场景标签（如 "openai/gpt-4o"）
	Context string
	// Err 原始错误
	Err error
}

// NewClassified 分类并包装一个错误
func NewClassified(err error, context string) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		// 已分类的错误保留原分类，仅补充场景
		if ce.Context == "" {
			ce.Context = context
		}
		return ce
	}
	return &ClassifiedError{
		Code:    Classify(err),
		Context: context,
		Err:     err,
	}
}

// Error 实现 error 接口
func (e *ClassifiedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Context, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Code, e.Err)
}

// Unwrap 返回原始错误
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Details 返回该错误分类的静态描述
func (e *ClassifiedError) Details() Details {
	return e.Code.Details()
}

// DetailsOf 返回任意错误的分类描述
func DetailsOf(err error) Details {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Details()
	}
	return Classify(err).Details()
}
