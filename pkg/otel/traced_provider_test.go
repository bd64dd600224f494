package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/easyops/codepilot-go/pkg/core/llm"
	"github.com/easyops/codepilot-go/pkg/core/message"
	"github.com/easyops/codepilot-go/pkg/otel"
)

// fakeProvider implements llm.Provider for testing
type fakeProvider struct {
	sendErr error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Models(_ context.Context) ([]llm.ModelConfig, error) {
	return []llm.ModelConfig{{ID: "fake-model", Name: "Fake", Provider: "fake", MaxTokens: 4096}}, nil
}

func (f *fakeProvider) SendMessage(_ context.Context, _ []message.Message, modelID string, _ *llm.ChatOptions) (*llm.Response, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &llm.Response{
		Content:  "ok",
		Model:    modelID,
		Provider: "fake",
		Usage: message.Usage{
			InputTokens:  100,
			OutputTokens: 50,
			TotalTokens:  150,
		},
	}, nil
}

func (f *fakeProvider) SendMessageStream(ctx context.Context, messages []message.Message, modelID string, opts *llm.ChatOptions) (<-chan llm.StreamChunk, <-chan error) {
	chunkCh := make(chan llm.StreamChunk)
	errCh := make(chan error, 1)
	close(chunkCh)
	close(errCh)
	return chunkCh, errCh
}

func (f *fakeProvider) Close() error { return nil }

var _ llm.Provider = (*fakeProvider)(nil)

func TestTracedProvider_PassThrough(t *testing.T) {
	traced := otel.NewTracedProvider(&fakeProvider{})

	resp, err := traced.SendMessage(context.Background(), nil, "fake-model", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q", resp.Content)
	}

	models, err := traced.Models(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 1 {
		t.Errorf("len(models) = %d, want 1", len(models))
	}
	if traced.Name() != "fake" {
		t.Errorf("Name = %q", traced.Name())
	}
}

func TestTracedProvider_RecordsRequestMetrics(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	traced := otel.NewTracedProvider(&fakeProvider{},
		otel.WithTracedProviderMetrics(metrics),
	)

	ctx := context.Background()
	if _, err := traced.SendMessage(ctx, nil, "fake-model", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := traced.SendMessage(ctx, nil, "fake-model", nil); err != nil {
		t.Fatal(err)
	}

	if got := metrics.GetCounterValue(otel.MetricLLMRequests); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
	if got := metrics.GetCounterValue(otel.MetricLLMTokensPrompt); got != 200 {
		t.Errorf("prompt tokens = %d, want 200", got)
	}
	if got := metrics.GetCounterValue(otel.MetricLLMTokensCompletion); got != 100 {
		t.Errorf("completion tokens = %d, want 100", got)
	}
}

func TestTracedProvider_RecordsErrorMetrics(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	traced := otel.NewTracedProvider(&fakeProvider{sendErr: errors.New("boom")},
		otel.WithTracedProviderMetrics(metrics),
	)

	if _, err := traced.SendMessage(context.Background(), nil, "fake-model", nil); err == nil {
		t.Fatal("expected error")
	}

	if got := metrics.GetCounterValue(otel.MetricLLMErrors); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
	if got := metrics.GetCounterValue(otel.MetricLLMTokensPrompt); got != 0 {
		t.Errorf("prompt tokens = %d, want 0 on failure", got)
	}
}

func TestTurnTracer_CacheLookup(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	tracer := otel.NewTurnTracer(nil, metrics)

	ctx := context.Background()
	tracer.RecordCacheLookup(ctx, true)
	tracer.RecordCacheLookup(ctx, true)
	tracer.RecordCacheLookup(ctx, false)

	if got := metrics.GetCounterValue(otel.MetricCacheHits); got != 2 {
		t.Errorf("hits = %d, want 2", got)
	}
	if got := metrics.GetCounterValue(otel.MetricCacheMisses); got != 1 {
		t.Errorf("misses = %d, want 1", got)
	}
}

func TestTurnTracer_TurnLifecycle(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	tracer := otel.NewTurnTracer(otel.NewNoopTracer(), metrics)

	ctx := context.Background()
	ctx, span := tracer.StartTurn(ctx, "req-1", "coding")
	tracer.RecordContextAssembly(ctx, 1200, true)
	tracer.FinishTurn(ctx, span, nil, 50*time.Millisecond)

	if got := metrics.GetCounterValue(otel.MetricTurns); got != 1 {
		t.Errorf("turns = %d, want 1", got)
	}
	if got := metrics.GetCounterValue(otel.MetricContextCompress); got != 1 {
		t.Errorf("compressions = %d, want 1", got)
	}
	if got := metrics.GetCounterValue(otel.MetricTurnErrors); got != 0 {
		t.Errorf("turn errors = %d, want 0", got)
	}

	_, span = tracer.StartTurn(ctx, "req-2", "chat")
	tracer.FinishTurn(ctx, span, errors.New("boom"), 10*time.Millisecond)

	if got := metrics.GetCounterValue(otel.MetricTurnErrors); got != 1 {
		t.Errorf("turn errors = %d, want 1", got)
	}
}

func TestTurnTracer_CostRecording(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	tracer := otel.NewTurnTracer(nil, metrics)

	ctx := context.Background()
	tracer.RecordCost(ctx, 0.0075, 0.0075, "normal")
	tracer.RecordCost(ctx, 0.0025, 0.01, "normal")

	// 直方图累计每笔入账金额，仪表反映最新的当日总额
	values := metrics.GetHistogramValues(otel.MetricCostRecorded)
	if len(values) != 2 {
		t.Fatalf("recorded amounts = %d, want 2", len(values))
	}
	if values[0] != 0.0075 || values[1] != 0.0025 {
		t.Errorf("amounts = %v", values)
	}
	if got := metrics.GetGaugeValue(otel.MetricCostDaily); got != 0.01 {
		t.Errorf("daily gauge = %g, want 0.01", got)
	}
}

func TestTurnTracer_CostBlocked(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	tracer := otel.NewTurnTracer(nil, metrics)

	ctx := context.Background()
	tracer.RecordCostBlocked(ctx)
	tracer.RecordCostBlocked(ctx)

	if got := metrics.GetCounterValue(otel.MetricCostBlocked); got != 2 {
		t.Errorf("blocked = %d, want 2", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := otel.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}

	cfg.Tracing.SampleRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("sample rate above 1 must be rejected")
	}

	cfg = otel.DefaultConfig()
	cfg.Metrics.Exporter = "carrier-pigeon"
	if err := cfg.Validate(); !errors.Is(err, otel.ErrUnsupportedExporter) {
		t.Errorf("unknown exporter kind must be rejected, got %v", err)
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := otel.Config{}.WithDefaults()

	if cfg.ServiceName != "codepilot" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("SampleRate = %g", cfg.Tracing.SampleRate)
	}
	if cfg.Tracing.Exporter != string(otel.ExporterOTLPGRPC) {
		t.Errorf("Tracing.Exporter = %q", cfg.Tracing.Exporter)
	}
	if cfg.Metrics.Interval == 0 {
		t.Error("Interval must default to non-zero")
	}
}

func TestNewProvider_DisabledUsesNoop(t *testing.T) {
	p, err := otel.NewProvider(otel.Config{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown(context.Background())

	if _, ok := p.Tracer().(*otel.NoopTracer); !ok {
		t.Errorf("Tracer = %T, want NoopTracer", p.Tracer())
	}
	if _, ok := p.Metrics().(*otel.NoopMetrics); !ok {
		t.Errorf("Metrics = %T, want NoopMetrics", p.Metrics())
	}
	if p.Logger() == nil {
		t.Error("Logger must be available even when disabled")
	}
}

func TestNewProvider_NoneExporters(t *testing.T) {
	cfg := otel.Config{
		Enabled: true,
		Tracing: otel.TracingConfig{Enabled: true, Exporter: string(otel.ExporterNone)},
		Metrics: otel.MetricsConfig{Enabled: true, Exporter: string(otel.ExporterNone)},
	}
	p, err := otel.NewProvider(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// 真实的追踪器与指标收集器，数据进入丢弃导出器
	ctx, span := p.Tracer().Start(context.Background(), "turn")
	span.SetStatus(otel.StatusOK, "")
	span.End()
	p.Metrics().Counter(otel.MetricTurns).Add(ctx, 1)
	p.Metrics().Histogram(otel.MetricCostRecorded).Record(ctx, 0.001)
	p.Metrics().Gauge(otel.MetricCostDaily).Set(ctx, 0.001)

	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
