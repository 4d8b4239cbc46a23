package main

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracerProvider returns a provider logging every ended span when enabled,
// and the global provider otherwise. The returned function releases the provider.
func tracerProvider(enabled bool, logger *slog.Logger) (trace.TracerProvider, func()) {
	if !enabled {
		return otel.GetTracerProvider(), func() {}
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&spanLogger{logger: logger}))

	return provider, func() { _ = provider.Shutdown(context.Background()) }
}

type spanLogger struct {
	logger *slog.Logger
}

func (p *spanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *spanLogger) OnEnd(span sdktrace.ReadOnlySpan) {
	args := []any{"span", span.Name(), "elapsed", span.EndTime().Sub(span.StartTime())}
	for _, kv := range span.Attributes() {
		args = append(args, string(kv.Key), kv.Value.Emit())
	}

	if status := span.Status(); status.Code == codes.Error {
		p.logger.Debug("span failed", append(args, "error", status.Description)...)

		return
	}
	p.logger.Debug("span ended", args...)
}

func (p *spanLogger) Shutdown(context.Context) error {
	return nil
}

func (p *spanLogger) ForceFlush(context.Context) error {
	return nil
}

var _ sdktrace.SpanProcessor = (*spanLogger)(nil)
