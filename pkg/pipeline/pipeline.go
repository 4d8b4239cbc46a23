package pipeline

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/askiada/go-autoprof/pkg/imageio"
	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

const tracerName = "github.com/askiada/go-autoprof/pkg/pipeline"

// Option keys read by the engine. Every other key is passed through to the steps.
const (
	OptionImageFile = "image_file"
	OptionName      = "name"
	OptionWorkers   = "n_procs"
)

// ImageLoader reads the image of a job.
type ImageLoader func(path string, opts model.Options) (*model.Image, error)

// Pipeline runs named sequences of steps over images.
// The registry and the sequence graph must not be updated while a run is in flight.
type Pipeline struct {
	mu        sync.RWMutex
	methods   map[string]model.Step
	sequences map[string][]string

	opts   []model.PipelineOption
	loader ImageLoader
	logger *slog.Logger
	tracer trace.Tracer
	mode   Mode
}

// New creates a new pipeline with the standard sequences and an empty registry.
func New(opts ...Option) (*Pipeline, error) {
	pipe := &Pipeline{
		methods: make(map[string]model.Step),
		loader:  imageio.ReadImage,
		logger:  slog.Default(),
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
		mode:    ModeStandard,
	}

	for _, opt := range opts {
		opt(pipe)
	}

	if pipe.loader == nil {
		return nil, errors.New("image loader must be set")
	}

	sequences, err := DefaultSequences(pipe.mode)
	if err != nil {
		return nil, errors.Wrap(err, "unable to build default sequences")
	}
	pipe.sequences = sequences

	return pipe, nil
}
