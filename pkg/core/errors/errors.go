// Package errors 定义框架的通用错误类型与失败分类
package errors

import (
	"errors"
	"fmt"
)

// 通用错误
var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrContextCanceled 上下文被取消
	ErrContextCanceled = errors.New("context canceled")
)

// LLM 相关错误
var (
	// ErrRateLimited 请求被限速
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout 请求超时
	ErrTimeout = errors.New("request timeout")
	// ErrTokenLimitExceeded Token 限制超出
	ErrTokenLimitExceeded = errors.New("token limit exceeded")
	// ErrInvalidAPIKey API 密钥无效
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrModelNotFound 模型未找到
	ErrModelNotFound = errors.New("model not found")
	// ErrProviderUnavailable 提供商不可用
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInvalidResponse LLM 响应无效
	ErrInvalidResponse = errors.New("invalid LLM response")
	// ErrCostLimitExceeded 费用上限超出
	ErrCostLimitExceeded = errors.New("cost limit exceeded")
)

// WrapError 包装错误并添加上下文信息
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// IsRetryable 判断错误是否可重试
//
// 已分类错误按分类表判定，未分类错误先分类再判定。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContextCanceled) || errors.Is(err, ErrCostLimitExceeded) {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Details().IsRetryable
	}
	return Classify(err).Details().IsRetryable
}

// IsFatal 判断错误是否为致命错误（不可恢复）
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInvalidAPIKey) ||
		errors.Is(err, ErrCostLimitExceeded) ||
		errors.Is(err, ErrInvalidConfig)
}
