package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/easyops/codepilot-go/pkg/core/errors"
	"github.com/easyops/codepilot-go/pkg/core/message"
)

// RelayClient 聚合中继客户端
//
// 对接 OpenAI 兼容的聚合服务：目录来自 /v1/models，对话走
// /v1/chat/completions。模型目录带 TTL 缓存，刷新失败且已有
// 成功快照时返回过期快照而不是报错。
type RelayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	catalogTTL time.Duration

	mu        sync.Mutex
	catalog   []ModelConfig
	fetchedAt time.Time

	options *Options
}

// RelayOption Relay 客户端选项
type RelayOption func(*RelayClient)

// WithRelayBaseURL 设置基础 URL
func WithRelayBaseURL(url string) RelayOption {
	return func(c *RelayClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithRelayAPIKey 设置 API 密钥
func WithRelayAPIKey(key string) RelayOption {
	return func(c *RelayClient) {
		c.apiKey = key
	}
}

// WithRelayHTTPClient 设置 HTTP 客户端
func WithRelayHTTPClient(client *http.Client) RelayOption {
	return func(c *RelayClient) {
		c.httpClient = client
	}
}

// WithRelayCatalogTTL 设置目录缓存时间
func WithRelayCatalogTTL(ttl time.Duration) RelayOption {
	return func(c *RelayClient) {
		c.catalogTTL = ttl
	}
}

// NewRelayClient 创建聚合中继客户端
func NewRelayClient(opts ...RelayOption) *RelayClient {
	c := &RelayClient{
		baseURL:    "http://localhost:8080",
		catalogTTL: 5 * time.Minute,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		options: DefaultOptions(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// relayModel 中继目录条目
type relayModel struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	ContextLength int      `json:"context_length"`
	Capabilities  []string `json:"capabilities"`
	Pricing       struct {
		Input  float64 `json:"input"`
		Output float64 `json:"output"`
	} `json:"pricing"`
}

// relayModelList 中继目录响应
type relayModelList struct {
	Data []relayModel `json:"data"`
}

// relayChatRequest 中继对话请求
type relayChatRequest struct {
	Model       string         `json:"model"`
	Messages    []relayMessage `json:"messages"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
}

// relayMessage 中继消息
type relayMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// relayChatResponse 中继对话响应
type relayChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      relayMessage `json:"message"`
		Delta        relayMessage `json:"delta"`
		FinishReason string       `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Name 返回提供商名称
func (c *RelayClient) Name() string {
	return "relay"
}

// Close 关闭客户端连接
func (c *RelayClient) Close() error {
	return nil
}

// Models 返回模型目录
//
// TTL 内直接返回缓存；刷新失败但存在历史快照时返回过期快照。
// 并发刷新允许同时完成，后写者生效。
func (c *RelayClient) Models(ctx context.Context) ([]ModelConfig, error) {
	c.mu.Lock()
	if len(c.catalog) > 0 && time.Since(c.fetchedAt) < c.catalogTTL {
		cached := make([]ModelConfig, len(c.catalog))
		copy(cached, c.catalog)
		c.mu.Unlock()
		return cached, nil
	}
	stale := make([]ModelConfig, len(c.catalog))
	copy(stale, c.catalog)
	c.mu.Unlock()

	fetched, err := c.fetchCatalog(ctx)
	if err != nil {
		if len(stale) > 0 {
			slog.Warn("relay catalog refresh failed, serving stale snapshot",
				"error", err,
				"models", len(stale),
			)
			return stale, nil
		}
		return nil, errors.WrapError(err, "relay catalog fetch failed")
	}

	c.mu.Lock()
	c.catalog = fetched
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	result := make([]ModelConfig, len(fetched))
	copy(result, fetched)
	return result, nil
}

// fetchCatalog 从中继服务拉取模型目录
func (c *RelayClient) fetchCatalog(ctx context.Context) ([]ModelConfig, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, mapRelayStatus(resp.StatusCode, bodyBytes)
	}

	var list relayModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, errors.WrapError(errors.ErrInvalidResponse, "failed to decode relay catalog")
	}

	models := make([]ModelConfig, 0, len(list.Data))
	for _, m := range list.Data {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		models = append(models, ModelConfig{
			ID:              m.ID,
			Name:            name,
			Provider:        "relay",
			MaxTokens:       m.ContextLength,
			CostPer1KTokens: CostRate{Input: m.Pricing.Input, Output: m.Pricing.Output},
			Capabilities:    m.Capabilities,
		})
	}

	return models, nil
}

// SendMessage 发送对话请求（非流式）
func (c *RelayClient) SendMessage(ctx context.Context, messages []message.Message, modelID string, opts *ChatOptions) (*Response, error) {
	relayReq := c.buildRequest(messages, modelID, opts, false)

	body, err := json.Marshal(relayReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, mapRelayStatus(resp.StatusCode, bodyBytes)
	}

	var relayResp relayChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&relayResp); err != nil {
		return nil, errors.WrapError(errors.ErrInvalidResponse, "failed to decode relay response")
	}

	return c.convertResponse(relayResp)
}

// SendMessageStream 发送对话请求（流式）
func (c *RelayClient) SendMessageStream(ctx context.Context, messages []message.Message, modelID string, opts *ChatOptions) (<-chan StreamChunk, <-chan error) {
	chunkCh := make(chan StreamChunk)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		relayReq := c.buildRequest(messages, modelID, opts, true)

		body, err := json.Marshal(relayReq)
		if err != nil {
			errCh <- fmt.Errorf("failed to marshal request: %w", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			errCh <- fmt.Errorf("failed to create request: %w", err)
			return
		}
		c.setHeaders(httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			errCh <- fmt.Errorf("failed to send request: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			errCh <- mapRelayStatus(resp.StatusCode, bodyBytes)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				return
			}

			var relayResp relayChatResponse
			if err := json.Unmarshal([]byte(payload), &relayResp); err != nil {
				continue
			}
			if len(relayResp.Choices) == 0 {
				continue
			}

			choice := relayResp.Choices[0]
			chunk := StreamChunk{
				Content: choice.Delta.Content,
			}
			if choice.FinishReason != "" {
				chunk.Done = true
				chunk.FinishReason = choice.FinishReason
				if relayResp.Usage.TotalTokens > 0 {
					chunk.Usage = &message.Usage{
						InputTokens:  relayResp.Usage.PromptTokens,
						OutputTokens: relayResp.Usage.CompletionTokens,
						TotalTokens:  relayResp.Usage.TotalTokens,
					}
				}
			}

			select {
			case chunkCh <- chunk:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}

			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("failed to read stream: %w", err)
		}
	}()

	return chunkCh, errCh
}

// buildRequest 构建中继请求
func (c *RelayClient) buildRequest(messages []message.Message, modelID string, opts *ChatOptions, stream bool) relayChatRequest {
	resolved := resolveOptions(opts, c.options)

	msgs := make([]relayMessage, 0, len(messages))
	for _, msg := range messages {
		msgs = append(msgs, relayMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	return relayChatRequest{
		Model:       modelID,
		Messages:    msgs,
		MaxTokens:   resolved.MaxTokens,
		Temperature: resolved.Temperature,
		Stream:      stream,
	}
}

// convertResponse 在提供商边界归一化响应
func (c *RelayClient) convertResponse(resp relayChatResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.WrapError(errors.ErrInvalidResponse, "relay returned no choices")
	}

	choice := resp.Choices[0]
	return &Response{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		Provider:     "relay",
		FinishReason: choice.FinishReason,
		Usage: message.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// setHeaders 设置公共请求头
func (c *RelayClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// mapRelayStatus 映射中继 HTTP 状态码到框架错误
func mapRelayStatus(status int, body []byte) error {
	switch status {
	case 401, 403:
		return errors.ErrInvalidAPIKey
	case 404:
		return errors.ErrModelNotFound
	case 413:
		return errors.ErrTokenLimitExceeded
	case 429:
		return errors.ErrRateLimited
	case 500, 502, 503:
		return errors.ErrProviderUnavailable
	default:
		return fmt.Errorf("relay error (code=%d): %s", status, string(body))
	}
}

// compile-time interface check
var _ Provider = (*RelayClient)(nil)
