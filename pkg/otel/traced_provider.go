// Package otel provides observability integration for CodePilot
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/easyops/codepilot-go/pkg/core/llm"
	"github.com/easyops/codepilot-go/pkg/core/message"
)

// TracedProvider wraps an LLM provider with tracing support
type TracedProvider struct {
	provider llm.Provider
	tracer   Tracer
	metrics  Metrics
}

// TracedProviderOption configures the traced provider
type TracedProviderOption func(*TracedProvider)

// WithTracedProviderTracer sets the tracer
func WithTracedProviderTracer(tracer Tracer) TracedProviderOption {
	return func(p *TracedProvider) {
		p.tracer = tracer
	}
}

// WithTracedProviderMetrics sets the metrics
func WithTracedProviderMetrics(metrics Metrics) TracedProviderOption {
	return func(p *TracedProvider) {
		p.metrics = metrics
	}
}

// NewTracedProvider creates a traced LLM provider wrapper
func NewTracedProvider(provider llm.Provider, opts ...TracedProviderOption) *TracedProvider {
	tp := &TracedProvider{
		provider: provider,
		tracer:   NewNoopTracer(),
		metrics:  NewNoopMetrics(),
	}

	for _, opt := range opts {
		opt(tp)
	}

	return tp
}

// Name returns the provider name
func (p *TracedProvider) Name() string {
	return p.provider.Name()
}

// Models returns the provider catalog with tracing
func (p *TracedProvider) Models(ctx context.Context) ([]llm.ModelConfig, error) {
	ctx, span := p.tracer.Start(ctx, "llm.models",
		WithSpanKind(SpanKindClient),
		WithAttributes(LLMProvider(p.provider.Name())),
	)
	defer span.End()

	models, err := p.provider.Models(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(StatusError, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("model_count", len(models)))
	span.SetStatus(StatusOK, "")
	return models, nil
}

// SendMessage sends a chat request with tracing
func (p *TracedProvider) SendMessage(ctx context.Context, messages []message.Message, modelID string, opts *llm.ChatOptions) (*llm.Response, error) {
	ctx, span := p.tracer.Start(ctx, "llm.send_message",
		WithSpanKind(SpanKindClient),
		WithAttributes(
			LLMProvider(p.provider.Name()),
			LLMModel(modelID),
		),
	)
	defer span.End()

	startTime := time.Now()

	resp, err := p.provider.SendMessage(ctx, messages, modelID, opts)
	duration := time.Since(startTime)

	p.recordMetrics(ctx, modelID, resp, err, duration)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(StatusError, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int(AttrLLMPromptTokens, resp.Usage.InputTokens),
		attribute.Int(AttrLLMCompletionTokens, resp.Usage.OutputTokens),
		attribute.Int(AttrLLMTotalTokens, resp.Usage.TotalTokens),
	)
	span.AddEvent("llm.response",
		attribute.String("finish_reason", resp.FinishReason),
	)
	span.SetStatus(StatusOK, "")

	return resp, nil
}

// SendMessageStream sends a streaming chat request with tracing
func (p *TracedProvider) SendMessageStream(ctx context.Context, messages []message.Message, modelID string, opts *llm.ChatOptions) (<-chan llm.StreamChunk, <-chan error) {
	ctx, span := p.tracer.Start(ctx, "llm.send_message_stream",
		WithSpanKind(SpanKindClient),
		WithAttributes(
			LLMProvider(p.provider.Name()),
			LLMModel(modelID),
		),
	)

	chunkCh, errCh := p.provider.SendMessageStream(ctx, messages, modelID, opts)

	tracedChunkCh := make(chan llm.StreamChunk)
	tracedErrCh := make(chan error, 1)

	go func() {
		defer close(tracedChunkCh)
		defer close(tracedErrCh)
		defer span.End()

		startTime := time.Now()
		var lastUsage *message.Usage

		for {
			select {
			case chunk, ok := <-chunkCh:
				if !ok {
					duration := time.Since(startTime)
					if lastUsage != nil {
						span.SetAttributes(
							attribute.Int(AttrLLMPromptTokens, lastUsage.InputTokens),
							attribute.Int(AttrLLMCompletionTokens, lastUsage.OutputTokens),
							attribute.Int(AttrLLMTotalTokens, lastUsage.TotalTokens),
						)
						p.metrics.Counter(MetricLLMTokensPrompt).Add(ctx, int64(lastUsage.InputTokens),
							NewAttr("provider", p.provider.Name()),
							NewAttr("model", modelID),
						)
						p.metrics.Counter(MetricLLMTokensCompletion).Add(ctx, int64(lastUsage.OutputTokens),
							NewAttr("provider", p.provider.Name()),
							NewAttr("model", modelID),
						)
					}
					p.metrics.Counter(MetricLLMRequests).Add(ctx, 1,
						NewAttr("provider", p.provider.Name()),
						NewAttr("model", modelID),
						NewAttr("status", "success"),
					)
					p.metrics.Histogram(MetricLLMRequestDuration).Record(ctx, duration.Seconds()*1000,
						NewAttr("provider", p.provider.Name()),
						NewAttr("model", modelID),
					)
					span.SetStatus(StatusOK, "")
					return
				}
				if chunk.Usage != nil {
					lastUsage = chunk.Usage
				}
				tracedChunkCh <- chunk

			case err, ok := <-errCh:
				if ok && err != nil {
					span.RecordError(err)
					span.SetStatus(StatusError, err.Error())
					p.metrics.Counter(MetricLLMRequests).Add(ctx, 1,
						NewAttr("provider", p.provider.Name()),
						NewAttr("model", modelID),
						NewAttr("status", "error"),
					)
					p.metrics.Counter(MetricLLMErrors).Add(ctx, 1,
						NewAttr("provider", p.provider.Name()),
						NewAttr("model", modelID),
					)
					tracedErrCh <- err
					return
				}
			}
		}
	}()

	return tracedChunkCh, tracedErrCh
}

// Close closes the underlying provider
func (p *TracedProvider) Close() error {
	return p.provider.Close()
}

// recordMetrics records LLM call metrics
func (p *TracedProvider) recordMetrics(ctx context.Context, modelID string, resp *llm.Response, err error, duration time.Duration) {
	if err != nil {
		p.metrics.Counter(MetricLLMRequests).Add(ctx, 1,
			NewAttr("provider", p.provider.Name()),
			NewAttr("model", modelID),
			NewAttr("status", "error"),
		)
		p.metrics.Counter(MetricLLMErrors).Add(ctx, 1,
			NewAttr("provider", p.provider.Name()),
			NewAttr("model", modelID),
		)
	} else {
		p.metrics.Counter(MetricLLMRequests).Add(ctx, 1,
			NewAttr("provider", p.provider.Name()),
			NewAttr("model", modelID),
			NewAttr("status", "success"),
		)
		p.metrics.Counter(MetricLLMTokensPrompt).Add(ctx, int64(resp.Usage.InputTokens),
			NewAttr("provider", p.provider.Name()),
			NewAttr("model", modelID),
		)
		p.metrics.Counter(MetricLLMTokensCompletion).Add(ctx, int64(resp.Usage.OutputTokens),
			NewAttr("provider", p.provider.Name()),
			NewAttr("model", modelID),
		)
	}

	p.metrics.Histogram(MetricLLMRequestDuration).Record(ctx, duration.Seconds()*1000,
		NewAttr("provider", p.provider.Name()),
		NewAttr("model", modelID),
	)
}

// TurnTracer provides helper functions for tracing pipeline turns
type TurnTracer struct {
	tracer  Tracer
	metrics Metrics
}

// NewTurnTracer creates a new turn tracer
func NewTurnTracer(tracer Tracer, metrics Metrics) *TurnTracer {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	return &TurnTracer{
		tracer:  tracer,
		metrics: metrics,
	}
}

// StartTurn starts a trace span for a chat turn
func (tt *TurnTracer) StartTurn(ctx context.Context, requestID, taskType string) (context.Context, Span) {
	return tt.tracer.Start(ctx, "pipeline.turn",
		WithSpanKind(SpanKindInternal),
		WithAttributes(
			TurnRequestID(requestID),
			TurnTaskType(taskType),
		),
	)
}

// RecordContextAssembly records a context assembly event
func (tt *TurnTracer) RecordContextAssembly(ctx context.Context, tokensUsed int, compressed bool) {
	span := tt.tracer.SpanFromContext(ctx)
	span.AddEvent("pipeline.context_assembled",
		attribute.Int(AttrContextTokensUsed, tokensUsed),
		attribute.Bool(AttrContextCompressed, compressed),
	)
	tt.metrics.Histogram(MetricContextTokens).Record(ctx, float64(tokensUsed))
	if compressed {
		tt.metrics.Counter(MetricContextCompress).Add(ctx, 1)
	}
}

// RecordCacheLookup records a cache lookup event
func (tt *TurnTracer) RecordCacheLookup(ctx context.Context, hit bool) {
	span := tt.tracer.SpanFromContext(ctx)
	span.AddEvent("pipeline.cache_lookup", CacheHit(hit))
	if hit {
		tt.metrics.Counter(MetricCacheHits).Add(ctx, 1)
	} else {
		tt.metrics.Counter(MetricCacheMisses).Add(ctx, 1)
	}
}

// RecordCost records a cost mutation: the charged amount and the
// resulting daily total
func (tt *TurnTracer) RecordCost(ctx context.Context, amount, dailyTotal float64, state string) {
	span := tt.tracer.SpanFromContext(ctx)
	span.AddEvent("pipeline.cost_recorded",
		CostAmount(amount),
		attribute.String(AttrCostState, state),
	)
	tt.metrics.Histogram(MetricCostRecorded).Record(ctx, amount,
		NewAttr("state", state),
	)
	tt.metrics.Gauge(MetricCostDaily).Set(ctx, dailyTotal)
}

// RecordCostBlocked records a request rejected by the daily cost limit
func (tt *TurnTracer) RecordCostBlocked(ctx context.Context) {
	span := tt.tracer.SpanFromContext(ctx)
	span.AddEvent("pipeline.cost_blocked")
	tt.metrics.Counter(MetricCostBlocked).Add(ctx, 1)
}

// FinishTurn finishes the turn span
func (tt *TurnTracer) FinishTurn(ctx context.Context, span Span, err error, duration time.Duration) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(StatusError, err.Error())
		tt.metrics.Counter(MetricTurnErrors).Add(ctx, 1)
	} else {
		span.SetStatus(StatusOK, "")
	}
	tt.metrics.Counter(MetricTurns).Add(ctx, 1)
	tt.metrics.Histogram(MetricTurnDuration).Record(ctx, duration.Seconds()*1000)
	span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
	span.End()
}

// compile-time interface check
var _ llm.Provider = (*TracedProvider)(nil)
