package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ExporterKind 导出器种类
type ExporterKind string

const (
	// ExporterOTLPGRPC 通过 OTLP gRPC 上报
	ExporterOTLPGRPC ExporterKind = "otlp-grpc"
	// ExporterOTLPHTTP 通过 OTLP HTTP 上报
	ExporterOTLPHTTP ExporterKind = "otlp-http"
	// ExporterStdout 打印到标准输出（调试用）
	ExporterStdout ExporterKind = "stdout"
	// ExporterNone 丢弃所有数据
	ExporterNone ExporterKind = "none"
)

// validExporterKind 校验导出器种类
func validExporterKind(kind ExporterKind) bool {
	switch kind {
	case ExporterOTLPGRPC, ExporterOTLPHTTP, ExporterStdout, ExporterNone:
		return true
	}
	return false
}

// newTraceExporter 按追踪配置创建 Span 导出器
func newTraceExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch ExporterKind(cfg.Exporter) {
	case ExporterOTLPGRPC:
		client := otlptracegrpc.NewClient(grpcTraceOptions(cfg.Endpoint, cfg.Insecure, cfg.Timeout)...)
		return otlptrace.New(ctx, client)
	case ExporterOTLPHTTP:
		return otlptracehttp.New(ctx, httpTraceOptions(cfg.Endpoint, cfg.Insecure, cfg.Timeout)...)
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterNone:
		return &discardSpanExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExporter, cfg.Exporter)
	}
}

// newMetricExporter 按指标配置创建指标导出器
func newMetricExporter(ctx context.Context, cfg MetricsConfig) (sdkmetric.Exporter, error) {
	switch ExporterKind(cfg.Exporter) {
	case ExporterOTLPGRPC:
		return otlpmetricgrpc.New(ctx, grpcMetricOptions(cfg.Endpoint, cfg.Insecure)...)
	case ExporterOTLPHTTP:
		return otlpmetrichttp.New(ctx, httpMetricOptions(cfg.Endpoint, cfg.Insecure)...)
	case ExporterStdout:
		return stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	case ExporterNone:
		return &discardMetricExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExporter, cfg.Exporter)
	}
}

func grpcTraceOptions(endpoint string, insecureConn bool, timeout time.Duration) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if insecureConn {
		opts = append(opts,
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			otlptracegrpc.WithInsecure(),
		)
	}
	if timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(timeout))
	}
	return opts
}

func httpTraceOptions(endpoint string, insecureConn bool, timeout time.Duration) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecureConn {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(timeout))
	}
	return opts
}

func grpcMetricOptions(endpoint string, insecureConn bool) []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
	if insecureConn {
		opts = append(opts,
			otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			otlpmetricgrpc.WithInsecure(),
		)
	}
	return opts
}

func httpMetricOptions(endpoint string, insecureConn bool) []otlpmetrichttp.Option {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecureConn {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return opts
}

// discardSpanExporter 丢弃所有 Span
type discardSpanExporter struct{}

func (e *discardSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return nil
}

func (e *discardSpanExporter) Shutdown(ctx context.Context) error { return nil }

// discardMetricExporter 丢弃所有指标
type discardMetricExporter struct{}

func (e *discardMetricExporter) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func (e *discardMetricExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return nil
}

func (e *discardMetricExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	return nil
}

func (e *discardMetricExporter) ForceFlush(ctx context.Context) error { return nil }

func (e *discardMetricExporter) Shutdown(ctx context.Context) error { return nil }

// compile-time interface check
var _ sdktrace.SpanExporter = (*discardSpanExporter)(nil)
var _ sdkmetric.Exporter = (*discardMetricExporter)(nil)
