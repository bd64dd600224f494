package errors_test

import (
	"context"
	"testing"
	"time"

	"github.com/easyops/codepilot-go/pkg/core/errors"
)

func fastRetryConfig(maxRetries int) errors.RetryConfig {
	return errors.RetryConfig{
		MaxRetries:        maxRetries,
		BaseDelay:         time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	result, err := errors.Retry(context.Background(), fastRetryConfig(3), "test",
		func(ctx context.Context) (string, error) {
			attempts++
			return "ok", nil
		})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want %q", result, "ok")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_ExhaustsRetryableFailure(t *testing.T) {
	attempts := 0
	_, err := errors.Retry(context.Background(), fastRetryConfig(3), "test",
		func(ctx context.Context) (string, error) {
			attempts++
			return "", errors.ErrRateLimited
		})

	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	// 总尝试次数为 MaxRetries+1
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestRetry_NonRetryableSingleAttempt(t *testing.T) {
	attempts := 0
	_, err := errors.Retry(context.Background(), fastRetryConfig(3), "test",
		func(ctx context.Context) (string, error) {
			attempts++
			return "", errors.ErrInvalidAPIKey
		})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry for terminal failure)", attempts)
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	result, err := errors.Retry(context.Background(), fastRetryConfig(3), "test",
		func(ctx context.Context) (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.ErrProviderUnavailable
			}
			return 42, nil
		})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := errors.RetryConfig{
		MaxRetries:        3,
		BaseDelay:         time.Hour, // 退避期间必然被取消
		MaxDelay:          time.Hour,
		BackoffMultiplier: 2,
	}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		_, err := errors.Retry(ctx, cfg, "test",
			func(ctx context.Context) (string, error) {
				attempts++
				return "", errors.ErrRateLimited
			})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("retry did not abort after cancellation")
	}

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no new attempt after cancel)", attempts)
	}
}

func TestWithFallback_PrimarySucceeds(t *testing.T) {
	fallbackCalled := false
	result, err := errors.WithFallback(context.Background(), "test",
		func(ctx context.Context) (string, error) { return "primary", nil },
		func(ctx context.Context) (string, error) {
			fallbackCalled = true
			return "fallback", nil
		})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "primary" {
		t.Errorf("result = %q, want %q", result, "primary")
	}
	if fallbackCalled {
		t.Error("fallback should not run when primary succeeds")
	}
}

func TestWithFallback_FallbackSucceeds(t *testing.T) {
	result, err := errors.WithFallback(context.Background(), "test",
		func(ctx context.Context) (string, error) { return "", errors.ErrProviderUnavailable },
		func(ctx context.Context) (string, error) { return "fallback", nil })

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "fallback" {
		t.Errorf("result = %q, want %q", result, "fallback")
	}
}

func TestWithFallback_BothFailReturnsPrimaryError(t *testing.T) {
	_, err := errors.WithFallback(context.Background(), "test",
		func(ctx context.Context) (string, error) { return "", errors.ErrRateLimited },
		func(ctx context.Context) (string, error) { return "", errors.ErrInvalidAPIKey })

	if err == nil {
		t.Fatal("expected error")
	}

	// 返回主路径的错误，备选的失败只写日志
	details := errors.DetailsOf(err)
	if details.Code != errors.CodeRateLimitExceeded {
		t.Errorf("Code = %v, want primary error's classification %v",
			details.Code, errors.CodeRateLimitExceeded)
	}
}
