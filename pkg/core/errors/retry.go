package errors

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// RetryConfig 重试策略配置
type RetryConfig struct {
	// MaxRetries 最大重试次数（总尝试次数为 MaxRetries+1）
	MaxRetries int
	// BaseDelay 首次重试前的基础延迟
	BaseDelay time.Duration
	// MaxDelay 单次延迟上限
	MaxDelay time.Duration
	// BackoffMultiplier 指数退避倍数
	BackoffMultiplier float64
}

// DefaultRetryConfig 返回默认重试策略
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
	}
}

// backoffDelay 计算第 attempt 次失败后的退避延迟
// 使用公式: min(BaseDelay * BackoffMultiplier^attempt, MaxDelay)
func (c RetryConfig) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiplier, float64(attempt)))
	if delay > c.MaxDelay || delay < 0 {
		delay = c.MaxDelay
	}
	return delay
}

// Retry 执行带指数退避的重试
//
// 尝试 0..MaxRetries 次。不可重试的分类立即返回；最后一次尝试
// 失败后返回；退避等待可被上下文取消，取消后不再发起新的尝试。
func Retry[T any](ctx context.Context, cfg RetryConfig, label string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, WrapError(ErrContextCanceled, label)
		default:
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		classified := NewClassified(err, label)
		lastErr = classified

		if !classified.Details().IsRetryable {
			return zero, classified
		}

		if attempt < cfg.MaxRetries {
			delay := cfg.backoffDelay(attempt)
			slog.Debug("retrying after failure",
				"context", label,
				"attempt", attempt+1,
				"delay", delay,
				"code", classified.Code,
			)
			select {
			case <-ctx.Done():
				return zero, WrapError(ErrContextCanceled, label)
			case <-time.After(delay):
			}
		}
	}

	return zero, lastErr
}

// WithFallback 先执行 primary，失败后执行 fallback
//
// 两者都失败时返回 primary 的包装错误，fallback 的错误只写日志，
// 保留最初的失败原因供用户排查。
func WithFallback[T any](ctx context.Context, label string, primary, fallback func(context.Context) (T, error)) (T, error) {
	result, primaryErr := primary(ctx)
	if primaryErr == nil {
		return result, nil
	}

	slog.Warn("primary operation failed, trying fallback",
		"context", label,
		"error", primaryErr,
	)

	result, fallbackErr := fallback(ctx)
	if fallbackErr == nil {
		return result, nil
	}

	slog.Error("fallback operation also failed",
		"context", label,
		"fallback_error", fallbackErr,
	)

	var zero T
	return zero, NewClassified(primaryErr, label)
}
