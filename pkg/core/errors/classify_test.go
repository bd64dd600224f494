package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/easyops/codepilot-go/pkg/core/errors"
)

func TestClassify_Sentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected errors.Code
	}{
		{
			name:     "rate limited",
			err:      errors.ErrRateLimited,
			expected: errors.CodeRateLimitExceeded,
		},
		{
			name:     "invalid api key",
			err:      errors.ErrInvalidAPIKey,
			expected: errors.CodeAPIKeyInvalid,
		},
		{
			name:     "model not found",
			err:      errors.ErrModelNotFound,
			expected: errors.CodeModelNotAvailable,
		},
		{
			name:     "provider unavailable",
			err:      errors.ErrProviderUnavailable,
			expected: errors.CodeModelNotAvailable,
		},
		{
			name:     "token limit",
			err:      errors.ErrTokenLimitExceeded,
			expected: errors.CodeContextTooLarge,
		},
		{
			name:     "cost limit",
			err:      errors.ErrCostLimitExceeded,
			expected: errors.CodeCostLimitExceeded,
		},
		{
			name:     "wrapped sentinel",
			err:      fmt.Errorf("call failed: %w", errors.ErrRateLimited),
			expected: errors.CodeRateLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Classify(tt.err); got != tt.expected {
				t.Errorf("Classify() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClassify_Keywords(t *testing.T) {
	tests := []struct {
		name     string
		errText  string
		expected errors.Code
	}{
		{
			name:     "network timeout",
			errText:  "request timed out after 30s",
			expected: errors.CodeNetworkError,
		},
		{
			name:     "connection refused",
			errText:  "dial tcp: connection refused",
			expected: errors.CodeNetworkError,
		},
		{
			name:     "http 401",
			errText:  "unexpected status 401",
			expected: errors.CodeAPIKeyInvalid,
		},
		{
			name:     "rate limit text",
			errText:  "429 too many requests",
			expected: errors.CodeRateLimitExceeded,
		},
		{
			name:     "context window",
			errText:  "this model's maximum context length is 8192 tokens",
			expected: errors.CodeContextTooLarge,
		},
		{
			name:     "unknown",
			errText:  "something unexpected happened",
			expected: errors.CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Classify(stderrors.New(tt.errText)); got != tt.expected {
				t.Errorf("Classify(%q) = %v, want %v", tt.errText, got, tt.expected)
			}
		})
	}
}

func TestClassify_OrderedRules(t *testing.T) {
	// "network timeout on 429" 同时命中网络和限速关键词，
	// 规则表有序，先匹配者生效
	err := stderrors.New("network timeout on 429")
	if got := errors.Classify(err); got != errors.CodeNetworkError {
		t.Errorf("Classify() = %v, want %v (first matching rule wins)", got, errors.CodeNetworkError)
	}
}

func TestNewClassified_PreservesExisting(t *testing.T) {
	original := errors.NewClassified(errors.ErrRateLimited, "openai/gpt-4o")
	rewrapped := errors.NewClassified(fmt.Errorf("outer: %w", original), "router")

	if rewrapped.Code != errors.CodeRateLimitExceeded {
		t.Errorf("Code = %v, want %v", rewrapped.Code, errors.CodeRateLimitExceeded)
	}
	if rewrapped.Context != "openai/gpt-4o" {
		t.Errorf("Context = %q, want original context preserved", rewrapped.Context)
	}
}

func TestClassifiedError_Unwrap(t *testing.T) {
	ce := errors.NewClassified(errors.ErrInvalidAPIKey, "test")

	if !stderrors.Is(ce, errors.ErrInvalidAPIKey) {
		t.Error("errors.Is should find the wrapped sentinel")
	}
}

func TestDetailsOf(t *testing.T) {
	details := errors.DetailsOf(errors.ErrCostLimitExceeded)

	if details.Code != errors.CodeCostLimitExceeded {
		t.Errorf("Code = %v, want %v", details.Code, errors.CodeCostLimitExceeded)
	}
	if details.IsRetryable {
		t.Error("cost limit breach must not be retryable")
	}
	if details.UserMessage == "" || details.Suggestion == "" {
		t.Error("user-facing fields should be populated")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", errors.ErrRateLimited, true},
		{"provider unavailable", errors.ErrProviderUnavailable, true},
		{"invalid key", errors.ErrInvalidAPIKey, false},
		{"token limit", errors.ErrTokenLimitExceeded, false},
		{"cost limit", errors.ErrCostLimitExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}
