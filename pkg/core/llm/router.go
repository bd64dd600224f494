package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/easyops/codepilot-go/pkg/core/errors"
	"github.com/easyops/codepilot-go/pkg/core/message"
)

// Router 多提供商路由器
//
// 按注册顺序作为优先级（首个为主提供商），统一模型解析、
// 重试与成本计算。成本只在这里计算，提供商不参与。
type Router struct {
	providers []Provider
	retry     errors.RetryConfig
}

// RouterOption 路由器选项
type RouterOption func(*Router)

// WithRetryConfig 设置重试策略
func WithRetryConfig(cfg errors.RetryConfig) RouterOption {
	return func(r *Router) {
		r.retry = cfg
	}
}

// NewRouter 创建路由器
//
// providers 按优先级排列，首个为主提供商。
func NewRouter(providers []Provider, opts ...RouterOption) (*Router, error) {
	if len(providers) == 0 {
		return nil, errors.WrapError(errors.ErrInvalidConfig, "router requires at least one provider")
	}

	r := &Router{
		providers: providers,
		retry:     errors.DefaultRetryConfig(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Catalog 返回所有提供商的模型目录
//
// 单个提供商失败时跳过并记录日志，不影响其余提供商。
// 每个提供商内部按模型名排序。
func (r *Router) Catalog(ctx context.Context) ([]ModelConfig, error) {
	var catalog []ModelConfig

	for _, p := range r.providers {
		models, err := p.Models(ctx)
		if err != nil {
			slog.Warn("provider catalog unavailable, skipping",
				"provider", p.Name(),
				"error", err,
			)
			continue
		}

		sort.Slice(models, func(i, j int) bool {
			return models[i].Name < models[j].Name
		})
		catalog = append(catalog, models...)
	}

	return catalog, nil
}

// Resolve 按模型 ID 解析模型配置与承载它的提供商
//
// 提供商按优先级顺序查询，未知 ID 返回硬错误并列出可用模型。
func (r *Router) Resolve(ctx context.Context, modelID string) (ModelConfig, Provider, error) {
	var available []string

	for _, p := range r.providers {
		models, err := p.Models(ctx)
		if err != nil {
			slog.Warn("provider catalog unavailable during resolve",
				"provider", p.Name(),
				"error", err,
			)
			continue
		}

		for _, m := range models {
			if m.ID == modelID {
				return m, p, nil
			}
			available = append(available, m.ID)
		}
	}

	return ModelConfig{}, nil, errors.WrapError(errors.ErrModelNotFound,
		fmt.Sprintf("model %q not found, available: %s", modelID, strings.Join(available, ", ")))
}

// SendMessage 发送对话请求
//
// 带指数退避重试；响应的 TotalCost 按模型费率在此计算。
func (r *Router) SendMessage(ctx context.Context, messages []message.Message, modelID string, opts *ChatOptions) (*Response, error) {
	model, provider, err := r.Resolve(ctx, modelID)
	if err != nil {
		return nil, err
	}

	return r.send(ctx, provider, model, messages, opts)
}

// SendMessageWithFallback 先走主模型，失败后切换备选模型
//
// 两者都失败时返回主模型的错误，备选的失败只写日志。
func (r *Router) SendMessageWithFallback(ctx context.Context, messages []message.Message, primaryID, fallbackID string, opts *ChatOptions) (*Response, error) {
	label := fmt.Sprintf("%s->%s", primaryID, fallbackID)
	return errors.WithFallback(ctx, label,
		func(ctx context.Context) (*Response, error) {
			return r.SendMessage(ctx, messages, primaryID, opts)
		},
		func(ctx context.Context) (*Response, error) {
			return r.SendMessage(ctx, messages, fallbackID, opts)
		},
	)
}

// SendMessageStream 发送流式对话请求
//
// 流式路径不重试，失败直接经错误通道返回。
func (r *Router) SendMessageStream(ctx context.Context, messages []message.Message, modelID string, opts *ChatOptions) (<-chan StreamChunk, <-chan error) {
	_, provider, err := r.Resolve(ctx, modelID)
	if err != nil {
		chunkCh := make(chan StreamChunk)
		errCh := make(chan error, 1)
		close(chunkCh)
		errCh <- err
		close(errCh)
		return chunkCh, errCh
	}

	return provider.SendMessageStream(ctx, messages, modelID, opts)
}

// send 执行请求并附加成本
func (r *Router) send(ctx context.Context, provider Provider, model ModelConfig, messages []message.Message, opts *ChatOptions) (*Response, error) {
	label := fmt.Sprintf("%s/%s", provider.Name(), model.ID)

	resp, err := errors.Retry(ctx, r.retry, label, func(ctx context.Context) (*Response, error) {
		return provider.SendMessage(ctx, messages, model.ID, opts)
	})
	if err != nil {
		return nil, err
	}

	resp.Usage.TotalCost = Cost(model, resp.Usage)
	return resp, nil
}

// Close 关闭所有提供商连接
func (r *Router) Close() error {
	var firstErr error
	for _, p := range r.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
