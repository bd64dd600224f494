// Package assistant 提供面向 UI 层的请求编排入口。
//
// 每个对话轮次执行一条流水线：收集上下文、预算内组装提示、
// 查询响应缓存、费用授权、路由模型调用、记账并回填缓存。
package assistant

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/easyops/codepilot-go/pkg/cache"
	ctxpkg "github.com/easyops/codepilot-go/pkg/context"
	"github.com/easyops/codepilot-go/pkg/core/errors"
	"github.com/easyops/codepilot-go/pkg/core/llm"
	"github.com/easyops/codepilot-go/pkg/core/message"
	"github.com/easyops/codepilot-go/pkg/cost"
	"github.com/easyops/codepilot-go/pkg/otel"
)

// TurnResult 单轮对话结果
type TurnResult struct {
	// Content 模型回复内容
	Content string `json:"content"`
	// Usage 本轮用量与费用，失败时为空
	Usage *message.Usage `json:"usage,omitempty"`
	// Cached 是否来自缓存
	Cached bool `json:"cached,omitempty"`
	// ErrorMessage 面向用户的错误说明，成功时为空
	ErrorMessage string `json:"error_message,omitempty"`
}

// Orchestrator 请求编排器
//
// 持有流水线的全部协作组件，由调用方显式构造并注入，
// 生命周期与宿主会话一致。
type Orchestrator struct {
	router    *llm.Router
	store     *ctxpkg.Store
	gatherer  ctxpkg.Gatherer
	assembler *ctxpkg.Assembler
	respCache *cache.Cache
	metrics   *cache.Metrics
	ledger    *cost.Ledger
	turns     *otel.TurnTracer

	defaultModel string
	temperature  float64
	maxTokens    int
}

// Option 编排器选项
type Option func(*Orchestrator)

// WithGatherer 设置上下文收集器
func WithGatherer(g ctxpkg.Gatherer) Option {
	return func(o *Orchestrator) {
		o.gatherer = g
	}
}

// WithAssembler 设置上下文组装器
func WithAssembler(a *ctxpkg.Assembler) Option {
	return func(o *Orchestrator) {
		o.assembler = a
	}
}

// WithStore 设置上下文块存储
func WithStore(s *ctxpkg.Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithCache 设置响应缓存
func WithCache(c *cache.Cache) Option {
	return func(o *Orchestrator) {
		o.respCache = c
	}
}

// WithLedger 设置费用账本
func WithLedger(l *cost.Ledger) Option {
	return func(o *Orchestrator) {
		o.ledger = l
	}
}

// WithTurnTracer 设置轮次追踪器
func WithTurnTracer(t *otel.TurnTracer) Option {
	return func(o *Orchestrator) {
		o.turns = t
	}
}

// WithDefaultModel 设置默认模型
func WithDefaultModel(modelID string) Option {
	return func(o *Orchestrator) {
		o.defaultModel = modelID
	}
}

// WithTemperature 设置默认温度
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) {
		o.temperature = t
	}
}

// WithMaxTokens 设置默认最大输出 Token
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) {
		o.maxTokens = n
	}
}

// New 创建编排器
func New(router *llm.Router, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		router:       router,
		store:        ctxpkg.NewStore(),
		assembler:    ctxpkg.NewAssembler(),
		respCache:    cache.New(),
		metrics:      cache.NewMetrics(),
		ledger:       cost.NewLedger(nil),
		turns:        otel.NewTurnTracer(nil, nil),
		defaultModel: "gpt-4o-mini",
		temperature:  0.7,
		maxTokens:    4096,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// TurnOption 单轮选项
type TurnOption func(*turnInput)

type turnInput struct {
	history []message.Message
}

// WithHistory 携带对话历史
func WithHistory(history []message.Message) TurnOption {
	return func(t *turnInput) {
		t.history = history
	}
}

// Orchestrate 执行一轮对话
//
// modelID 为空时使用默认模型。失败时返回的 TurnResult 带有
// 面向用户的错误说明，原始错误同时返回供程序处理。
func (o *Orchestrator) Orchestrate(ctx context.Context, userMessage, modelID, taskType string, opts ...TurnOption) (result *TurnResult, retErr error) {
	requestID := uuid.NewString()
	start := time.Now()

	input := &turnInput{}
	for _, opt := range opts {
		opt(input)
	}

	if modelID == "" {
		modelID = o.defaultModel
	}

	ctx, span := o.turns.StartTurn(ctx, requestID, taskType)
	defer func() {
		o.turns.FinishTurn(ctx, span, retErr, time.Since(start))
	}()

	logger := slog.With("request_id", requestID, "model", modelID)

	o.refreshContext(ctx, userMessage, taskType, input.history)

	model, _, err := o.router.Resolve(ctx, modelID)
	if err != nil {
		return o.fail(err), err
	}

	messages := append(append([]message.Message{}, input.history...), message.NewUserMessage(userMessage))

	assembled := o.assembler.Optimize(messages, model.MaxTokens, taskType, o.store.Chunks())
	o.turns.RecordContextAssembly(ctx, assembled.TokensUsed, assembled.CompressionApplied)
	logger.Debug("context assembled",
		"tokens_used", assembled.TokensUsed,
		"compressed", assembled.CompressionApplied,
		"summary", assembled.ContextSummary,
	)

	chatOpts := &llm.ChatOptions{
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	}

	key := cache.Key(assembled.Messages, model.ID, chatOpts.MaxTokens, chatOpts.Temperature)
	if cached, ok := o.respCache.Get(key); ok {
		o.metrics.RecordHit()
		o.turns.RecordCacheLookup(ctx, true)
		logger.Debug("cache hit", "key", key)
		return &TurnResult{
			Content: cached.Content,
			Usage:   &cached.Usage,
			Cached:  true,
		}, nil
	}
	o.metrics.RecordMiss()
	o.turns.RecordCacheLookup(ctx, false)

	if err := o.ledger.Authorize(); err != nil {
		o.turns.RecordCostBlocked(ctx)
		return o.fail(err), err
	}

	resp, err := o.router.SendMessage(ctx, assembled.Messages, model.ID, chatOpts)
	o.metrics.RecordRequest(time.Since(start), err == nil)
	if err != nil {
		return o.fail(err), err
	}

	o.ledger.Record(ctx, resp.Usage.TotalCost)
	snap := o.ledger.Snapshot()
	o.turns.RecordCost(ctx, resp.Usage.TotalCost, snap.DailyUsage, string(snap.State()))

	// 已取消的请求不回填缓存
	if ctx.Err() == nil {
		o.respCache.Put(key, resp)
	}

	logger.Info("turn completed",
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"cost", resp.Usage.TotalCost,
		"duration", time.Since(start),
	)

	return &TurnResult{
		Content: resp.Content,
		Usage:   &resp.Usage,
	}, nil
}

// GetCostSnapshot 返回账本的只读副本
func (o *Orchestrator) GetCostSnapshot() cost.Tracker {
	return o.ledger.Snapshot()
}

// GetCatalog 返回聚合后的模型目录
func (o *Orchestrator) GetCatalog(ctx context.Context) ([]llm.ModelConfig, error) {
	return o.router.Catalog(ctx)
}

// CacheMetrics 返回缓存与请求统计快照
func (o *Orchestrator) CacheMetrics() cache.MetricsSnapshot {
	return o.metrics.Snapshot()
}

// Close 释放资源
func (o *Orchestrator) Close() error {
	return o.router.Close()
}

// refreshContext 执行一个采集周期：清理过期块、收集并写入新块。
func (o *Orchestrator) refreshContext(ctx context.Context, userMessage, taskType string, history []message.Message) {
	if removed := o.store.Cleanup(); removed > 0 {
		slog.Debug("purged stale context chunks", "removed", removed)
	}

	if o.gatherer == nil {
		return
	}

	chunks, err := o.gatherer.Gather(ctx, &ctxpkg.GatherInput{
		Query:    userMessage,
		TaskType: taskType,
		History:  history,
	})
	if err != nil {
		slog.Warn("context gathering failed", "error", err)
		return
	}

	for _, chunk := range chunks {
		o.store.Add(chunk)
	}
}

// fail 将错误转换为面向用户的结果。
// 原始错误体只进日志，不直接展示。
func (o *Orchestrator) fail(err error) *TurnResult {
	details := errors.DetailsOf(err)

	msg := details.UserMessage
	if details.Suggestion != "" {
		msg += " " + details.Suggestion
	}

	return &TurnResult{ErrorMessage: msg}
}
