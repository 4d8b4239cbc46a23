package pipeline

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

type Option func(p *Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithImageLoader(loader ImageLoader) Option {
	return func(p *Pipeline) {
		p.loader = loader
	}
}

func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(p *Pipeline) {
		p.tracer = provider.Tracer(tracerName)
	}
}

// WithMode selects the built-in head sequence.
func WithMode(mode Mode) Option {
	return func(p *Pipeline) {
		p.mode = mode
	}
}

// WithPipelineOptions attaches hooks called during every run.
func WithPipelineOptions(opts ...model.PipelineOption) Option {
	return func(p *Pipeline) {
		p.opts = append(p.opts, opts...)
	}
}
