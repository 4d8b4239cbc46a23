package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-autoprof/pkg/pipeline"
	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

var errNoSuchImage = errors.New("no such image")

type memLoader struct {
	mu     sync.Mutex
	images map[string]*model.Image
}

func newMemLoader(images map[string]*model.Image) *memLoader {
	return &memLoader{images: images}
}

func (m *memLoader) load(path string, _ model.Options) (*model.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	img, ok := m.images[path]
	if !ok {
		return nil, errNoSuchImage
	}

	return img.Clone(), nil
}

func filledImage(t *testing.T, width, height int, value float64) *model.Image {
	t.Helper()

	img := model.NewImage(width, height)
	for i := range img.Pixels {
		img.Pixels[i] = value
	}

	return img
}

// holeImage returns a non-zero frame with an all-zero square of side hole at its centre.
func holeImage(t *testing.T, size, hole int) *model.Image {
	t.Helper()

	img := filledImage(t, size, size, 1)
	lo := size/2 - hole/2
	for y := lo; y < lo+hole; y++ {
		for x := lo; x < lo+hole; x++ {
			img.Set(x, y, 0)
		}
	}

	return img
}

func newTestPipeline(t *testing.T, loader *memLoader, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()

	base := []pipeline.Option{
		pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		pipeline.WithImageLoader(loader.load),
	}
	pipe, err := pipeline.New(append(base, opts...)...)
	require.NoError(t, err)

	return pipe
}

type call struct {
	job  string
	step string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) add(opts model.Options, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{job: opts.String(pipeline.OptionName), step: step})
}

func (r *recorder) steps(job string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, c := range r.calls {
		if c.job == job {
			out = append(out, c.step)
		}
	}

	return out
}

func (r *recorder) regular(name string, partial model.Results) model.Regular {
	return func(_ context.Context, img *model.Image, _ model.Results, opts model.Options) (*model.Image, model.Results, error) {
		r.add(opts, name)

		return img, partial, nil
	}
}

func (r *recorder) failing(name string, err error) model.Regular {
	return func(_ context.Context, _ *model.Image, _ model.Results, opts model.Options) (*model.Image, model.Results, error) {
		r.add(opts, name)

		return nil, nil, err
	}
}

func (r *recorder) branch(name, target string) model.Branch {
	return func(_ context.Context, _ *model.Image, _ model.Results, opts model.Options) (string, error) {
		r.add(opts, name)

		return target, nil
	}
}

type hookRecorder struct {
	mu       sync.Mutex
	started  int
	steps    int
	branches []string
	jobs     map[string]error
	means    map[string]time.Duration
	finished int
}

func newHookRecorder() *hookRecorder {
	return &hookRecorder{jobs: make(map[string]error)}
}

func (h *hookRecorder) New(map[string][]string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started++

	return nil
}

func (h *hookRecorder) OnStepOutput(string, *model.StepInfo, time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps++

	return nil
}

func (h *hookRecorder) OnBranch(_ string, step *model.StepInfo, target string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.branches = append(h.branches, step.Name+"->"+target)

	return nil
}

func (h *hookRecorder) AfterJob(job string, _ model.Timing, err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs[job] = err

	return nil
}

func (h *hookRecorder) Finish(means map[string]time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished++
	h.means = means

	return nil
}

var _ model.PipelineOption = (*hookRecorder)(nil)
