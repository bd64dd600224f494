package llm_test

import (
	"context"
	"testing"
	"time"

	"github.com/easyops/codepilot-go/pkg/core/errors"
	"github.com/easyops/codepilot-go/pkg/core/llm"
	"github.com/easyops/codepilot-go/pkg/core/message"
)

// mockProvider implements llm.Provider for testing
type mockProvider struct {
	name      string
	models    []llm.ModelConfig
	modelsErr error

	sendErr   error
	failTimes int
	calls     int
	response  *llm.Response
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Models(_ context.Context) ([]llm.ModelConfig, error) {
	if m.modelsErr != nil {
		return nil, m.modelsErr
	}
	return m.models, nil
}

func (m *mockProvider) SendMessage(_ context.Context, _ []message.Message, modelID string, _ *llm.ChatOptions) (*llm.Response, error) {
	m.calls++
	if m.sendErr != nil && (m.failTimes == 0 || m.calls <= m.failTimes) {
		return nil, m.sendErr
	}
	if m.response != nil {
		resp := *m.response
		return &resp, nil
	}
	return &llm.Response{
		Content:  "mock response",
		Model:    modelID,
		Provider: m.name,
		Usage: message.Usage{
			InputTokens:  1000,
			OutputTokens: 500,
			TotalTokens:  1500,
		},
	}, nil
}

func (m *mockProvider) SendMessageStream(ctx context.Context, messages []message.Message, modelID string, opts *llm.ChatOptions) (<-chan llm.StreamChunk, <-chan error) {
	chunkCh := make(chan llm.StreamChunk)
	errCh := make(chan error, 1)
	close(chunkCh)
	close(errCh)
	return chunkCh, errCh
}

func (m *mockProvider) Close() error { return nil }

var _ llm.Provider = (*mockProvider)(nil)

func newMockProvider(name string, modelIDs ...string) *mockProvider {
	models := make([]llm.ModelConfig, 0, len(modelIDs))
	for _, id := range modelIDs {
		models = append(models, llm.ModelConfig{
			ID:        id,
			Name:      id,
			Provider:  name,
			MaxTokens: 8192,
			CostPer1KTokens: llm.CostRate{
				Input:  0.0025,
				Output: 0.01,
			},
		})
	}
	return &mockProvider{name: name, models: models}
}

func fastRetry() llm.RouterOption {
	return llm.WithRetryConfig(errors.RetryConfig{
		MaxRetries:        3,
		BaseDelay:         time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
	})
}

func TestNewRouter_RequiresProvider(t *testing.T) {
	if _, err := llm.NewRouter(nil); err == nil {
		t.Error("expected error for empty provider list")
	}
}

func TestRouter_CatalogAggregates(t *testing.T) {
	p1 := newMockProvider("openai", "gpt-4o", "gpt-4o-mini")
	p2 := newMockProvider("relay", "claude-sonnet")

	router, err := llm.NewRouter([]llm.Provider{p1, p2})
	if err != nil {
		t.Fatal(err)
	}

	catalog, err := router.Catalog(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(catalog) != 3 {
		t.Fatalf("len = %d, want 3", len(catalog))
	}

	// 主提供商在前，提供商内部按名称排序
	if catalog[0].Provider != "openai" || catalog[2].Provider != "relay" {
		t.Error("catalog must keep provider precedence order")
	}
	if catalog[0].Name > catalog[1].Name {
		t.Error("models within a provider must sort alphabetically")
	}
}

func TestRouter_CatalogSkipsFailingProvider(t *testing.T) {
	p1 := &mockProvider{name: "openai", modelsErr: errors.ErrProviderUnavailable}
	p2 := newMockProvider("relay", "claude-sonnet")

	router, err := llm.NewRouter([]llm.Provider{p1, p2})
	if err != nil {
		t.Fatal(err)
	}

	catalog, err := router.Catalog(context.Background())
	if err != nil {
		t.Fatalf("one provider failing must not fail the catalog: %v", err)
	}
	if len(catalog) != 1 {
		t.Errorf("len = %d, want 1", len(catalog))
	}
}

func TestRouter_ResolveUnknownModel(t *testing.T) {
	router, err := llm.NewRouter([]llm.Provider{newMockProvider("openai", "gpt-4o")})
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = router.Resolve(context.Background(), "no-such-model")
	if err == nil {
		t.Fatal("expected hard error for unknown model")
	}
	if errors.DetailsOf(err).Code != errors.CodeModelNotAvailable {
		t.Errorf("Code = %v, want %v", errors.DetailsOf(err).Code, errors.CodeModelNotAvailable)
	}
}

func TestRouter_SendMessageComputesCost(t *testing.T) {
	provider := newMockProvider("openai", "gpt-4o")

	router, err := llm.NewRouter([]llm.Provider{provider}, fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := router.SendMessage(context.Background(),
		[]message.Message{message.NewUserMessage("hi")}, "gpt-4o", nil)
	if err != nil {
		t.Fatal(err)
	}

	// 1000/1000×0.0025 + 500/1000×0.01 = 0.0075
	want := 0.0075
	if resp.Usage.TotalCost != want {
		t.Errorf("TotalCost = %v, want %v", resp.Usage.TotalCost, want)
	}
}

func TestRouter_SendMessageRetriesTransient(t *testing.T) {
	provider := newMockProvider("openai", "gpt-4o")
	provider.sendErr = errors.ErrRateLimited
	provider.failTimes = 2 // 前两次失败，第三次成功

	router, err := llm.NewRouter([]llm.Provider{provider}, fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := router.SendMessage(context.Background(),
		[]message.Message{message.NewUserMessage("hi")}, "gpt-4o", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "mock response" {
		t.Errorf("Content = %q", resp.Content)
	}
	if provider.calls != 3 {
		t.Errorf("calls = %d, want 3", provider.calls)
	}
}

func TestRouter_SendMessageTerminalNoRetry(t *testing.T) {
	provider := newMockProvider("openai", "gpt-4o")
	provider.sendErr = errors.ErrInvalidAPIKey

	router, err := llm.NewRouter([]llm.Provider{provider}, fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	_, err = router.SendMessage(context.Background(),
		[]message.Message{message.NewUserMessage("hi")}, "gpt-4o", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if provider.calls != 1 {
		t.Errorf("calls = %d, want 1 (terminal failure must not retry)", provider.calls)
	}
}

func TestRouter_FallbackPreservesPrimaryError(t *testing.T) {
	primary := newMockProvider("openai", "gpt-4o")
	primary.sendErr = errors.ErrTokenLimitExceeded

	fallback := newMockProvider("relay", "claude-sonnet")
	fallback.sendErr = errors.ErrInvalidAPIKey

	router, err := llm.NewRouter([]llm.Provider{primary, fallback}, fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	_, err = router.SendMessageWithFallback(context.Background(),
		[]message.Message{message.NewUserMessage("hi")}, "gpt-4o", "claude-sonnet", nil)
	if err == nil {
		t.Fatal("expected error when both paths fail")
	}

	if errors.DetailsOf(err).Code != errors.CodeContextTooLarge {
		t.Errorf("Code = %v, want the primary error's classification", errors.DetailsOf(err).Code)
	}
}

func TestRouter_FallbackUsed(t *testing.T) {
	primary := newMockProvider("openai", "gpt-4o")
	primary.sendErr = errors.ErrProviderUnavailable

	fallback := newMockProvider("relay", "claude-sonnet")
	fallback.response = &llm.Response{
		Content:  "fallback answer",
		Model:    "claude-sonnet",
		Provider: "relay",
		Usage:    message.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}

	router, err := llm.NewRouter([]llm.Provider{primary, fallback}, fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := router.SendMessageWithFallback(context.Background(),
		[]message.Message{message.NewUserMessage("hi")}, "gpt-4o", "claude-sonnet", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "fallback answer" {
		t.Errorf("Content = %q, want fallback response", resp.Content)
	}
}

func TestCost(t *testing.T) {
	model := llm.ModelConfig{
		CostPer1KTokens: llm.CostRate{Input: 0.0025, Output: 0.01},
	}

	tests := []struct {
		name     string
		usage    message.Usage
		expected float64
	}{
		{"zero usage", message.Usage{}, 0},
		{"input only", message.Usage{InputTokens: 2000}, 0.005},
		{"mixed", message.Usage{InputTokens: 1000, OutputTokens: 500}, 0.0075},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := llm.Cost(model, tt.usage); got != tt.expected {
				t.Errorf("Cost() = %v, want %v", got, tt.expected)
			}
		})
	}
}
