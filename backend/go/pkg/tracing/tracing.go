package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"AIAssistant/backend/go/internal/config"
)

const instrumentation = "AIAssistant"

// 进程级的追踪状态：只初始化一次，退出时关闭。
var (
	initOnce sync.Once
	initErr  error
	provider *sdktrace.TracerProvider
	mu       sync.Mutex
)

// Init 初始化全局 TracerProvider，重复调用直接返回第一次的结果。
// 未启用时保持 otel 默认的空实现。
func Init(cfg config.TracingConfig, version string) error {
	initOnce.Do(func() {
		if !cfg.Enabled {
			return
		}
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(context.Background(), opts...)
		if err != nil {
			initErr = fmt.Errorf("创建 OTLP 导出器失败: %w", err)
			return
		}

		name := cfg.ServiceName
		if name == "" {
			name = "assistant-service"
		}
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(name),
				semconv.ServiceVersion(version),
			),
		)
		if err != nil {
			initErr = fmt.Errorf("创建追踪资源失败: %w", err)
			return
		}

		rate := cfg.SampleRate
		if rate <= 0 || rate > 1 {
			rate = 1
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
		)
		otel.SetTracerProvider(tp)

		mu.Lock()
		provider = tp
		mu.Unlock()
	})
	return initErr
}

// Shutdown 刷新并关闭 TracerProvider，未初始化时什么也不做。
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	mu.Unlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan 使用全局 TracerProvider 开启一个 span。
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, name, trace.WithAttributes(attrs...))
}
