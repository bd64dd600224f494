package llm

import (
	"context"
	"fmt"

	"github.com/easyops/codepilot-go/pkg/core/errors"
	"github.com/easyops/codepilot-go/pkg/core/message"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient OpenAI LLM 客户端
type OpenAIClient struct {
	client  *openai.Client
	options *Options
}

// openAICatalog OpenAI 模型目录（静态定价）
var openAICatalog = []ModelConfig{
	{
		ID:              "gpt-4o",
		Name:            "GPT-4o",
		Provider:        "openai",
		MaxTokens:       128000,
		CostPer1KTokens: CostRate{Input: 0.0025, Output: 0.01},
		Capabilities:    []string{"chat", "code", "vision"},
	},
	{
		ID:              "gpt-4o-mini",
		Name:            "GPT-4o mini",
		Provider:        "openai",
		MaxTokens:       128000,
		CostPer1KTokens: CostRate{Input: 0.00015, Output: 0.0006},
		Capabilities:    []string{"chat", "code"},
	},
	{
		ID:              "gpt-3.5-turbo",
		Name:            "GPT-3.5 Turbo",
		Provider:        "openai",
		MaxTokens:       16385,
		CostPer1KTokens: CostRate{Input: 0.0005, Output: 0.0015},
		Capabilities:    []string{"chat"},
	},
}

// NewOpenAI 创建 OpenAI 客户端
func NewOpenAI(opts ...Option) (*OpenAIClient, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.APIKey == "" {
		return nil, errors.ErrInvalidAPIKey
	}

	config := openai.DefaultConfig(options.APIKey)
	if options.BaseURL != "" {
		config.BaseURL = options.BaseURL
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		options: options,
	}, nil
}

// Name 返回提供商名称
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Models 返回模型目录
func (c *OpenAIClient) Models(_ context.Context) ([]ModelConfig, error) {
	result := make([]ModelConfig, len(openAICatalog))
	copy(result, openAICatalog)
	return result, nil
}

// Close 关闭客户端连接
func (c *OpenAIClient) Close() error {
	return nil
}

// SendMessage 发送对话请求（非流式）
func (c *OpenAIClient) SendMessage(ctx context.Context, messages []message.Message, modelID string, opts *ChatOptions) (*Response, error) {
	chatReq := c.buildChatRequest(messages, modelID, opts)

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	return c.parseResponse(resp)
}

// buildChatRequest 构建 OpenAI 请求
func (c *OpenAIClient) buildChatRequest(messages []message.Message, modelID string, opts *ChatOptions) openai.ChatCompletionRequest {
	resolved := resolveOptions(opts, c.options)

	return openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    convertMessagesToOpenAI(messages),
		Temperature: float32(resolved.Temperature),
		MaxTokens:   resolved.MaxTokens,
	}
}

// convertMessagesToOpenAI 转换消息格式
func convertMessagesToOpenAI(msgs []message.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return result
}

// parseResponse 在提供商边界归一化响应
func (c *OpenAIClient) parseResponse(resp openai.ChatCompletionResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.WrapError(errors.ErrInvalidResponse, "openai returned no choices")
	}

	choice := resp.Choices[0]
	return &Response{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		Provider:     "openai",
		FinishReason: string(choice.FinishReason),
		Usage: message.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// SendMessageStream 发送对话请求（流式）
func (c *OpenAIClient) SendMessageStream(ctx context.Context, messages []message.Message, modelID string, opts *ChatOptions) (<-chan StreamChunk, <-chan error) {
	chunkCh := make(chan StreamChunk)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		chatReq := c.buildChatRequest(messages, modelID, opts)
		chatReq.Stream = true

		stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			errCh <- mapOpenAIError(err)
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if err.Error() == "EOF" {
					return
				}
				errCh <- mapOpenAIError(err)
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			choice := response.Choices[0]
			chunk := StreamChunk{
				Content: choice.Delta.Content,
			}
			if choice.FinishReason != "" {
				chunk.Done = true
				chunk.FinishReason = string(choice.FinishReason)
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
	}()

	return chunkCh, errCh
}

// mapOpenAIError 映射 OpenAI 错误到框架错误
func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	apiErr, ok := err.(*openai.APIError)
	if !ok {
		return errors.WrapError(err, "openai request failed")
	}

	switch apiErr.HTTPStatusCode {
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
		return fmt.Errorf("openai error (code=%d): %w", apiErr.HTTPStatusCode, err)
	}
}

// compile-time interface check
var _ Provider = (*OpenAIClient)(nil)
