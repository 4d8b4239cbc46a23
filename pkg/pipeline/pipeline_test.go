package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/askiada/go-autoprof/pkg/pipeline"
	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

func TestProcessImageTimingHasOneEntryPerRegularStep(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	loader := newMemLoader(map[string]*model.Image{"galaxy.txt": filledImage(t, 50, 50, 1)})
	pipe := newTestPipeline(t, loader)
	pipe.UpdateMethods(map[string]model.Step{
		"a":      rec.regular("a", nil),
		"branch": rec.branch("branch", ""),
		"b":      rec.regular("b", nil),
	})
	pipe.UpdateHead([]string{"a", "branch", "b"})

	outcome := pipe.ProcessImage(context.Background(), model.Options{pipeline.OptionImageFile: "galaxy.txt"})
	require.NoError(t, outcome.Err)
	assert.False(t, outcome.Failed())
	assert.Equal(t, "galaxy", outcome.Job)
	assert.Len(t, outcome.Timing, 2)
	assert.Contains(t, outcome.Timing, "a")
	assert.Contains(t, outcome.Timing, "b")
	assert.NotContains(t, outcome.Timing, "branch")
	assert.Equal(t, []string{"a", "branch", "b"}, rec.steps("galaxy"))
}

func TestProcessImageBranchRedirect(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	loader := newMemLoader(map[string]*model.Image{"g.txt": filledImage(t, 30, 30, 1)})
	pipe := newTestPipeline(t, loader)
	pipe.UpdateMethods(map[string]model.Step{
		"a":      rec.regular("a", nil),
		"branch": rec.branch("branch", "alt"),
		"never":  rec.regular("never", nil),
		"c":      rec.regular("c", nil),
		"d":      rec.regular("d", nil),
	})
	require.NoError(t, pipe.UpdateSequences(map[string][]string{
		pipeline.HeadSequence: {"a", "branch", "never"},
		"alt":                 {"c", "d"},
	}))

	outcome := pipe.ProcessImage(context.Background(), model.Options{pipeline.OptionImageFile: "g.txt"})
	require.NoError(t, outcome.Err)
	assert.Equal(t, []string{"a", "branch", "c", "d"}, rec.steps("g"))
	assert.Len(t, outcome.Timing, 3)
	assert.NotContains(t, outcome.Timing, "never")
}

func TestProcessImageBranchResumesAtFirstStep(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	loader := newMemLoader(map[string]*model.Image{"g.txt": filledImage(t, 30, 30, 1)})
	pipe := newTestPipeline(t, loader)

	visits := 0
	pipe.UpdateMethods(map[string]model.Step{
		"a": rec.regular("a", nil),
		"again": model.Branch(func(_ context.Context, _ *model.Image, _ model.Results, opts model.Options) (string, error) {
			rec.add(opts, "again")
			visits++
			if visits == 1 {
				return pipeline.HeadSequence, nil
			}

			return "", nil
		}),
		"b": rec.regular("b", nil),
	})
	pipe.UpdateHead([]string{"a", "again", "b"})

	outcome := pipe.ProcessImage(context.Background(), model.Options{pipeline.OptionImageFile: "g.txt"})
	require.NoError(t, outcome.Err)
	assert.Equal(t, []string{"a", "again", "a", "again", "b"}, rec.steps("g"))
	assert.Len(t, outcome.Timing, 2)
}

func TestProcessImageStepFault(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	loader := newMemLoader(map[string]*model.Image{"g.txt": filledImage(t, 30, 30, 1)})
	pipe := newTestPipeline(t, loader)
	pipe.UpdateMethods(map[string]model.Step{
		"A": rec.failing("A", assert.AnError),
		"B": rec.regular("B", model.Results{"b": 1}),
	})
	pipe.UpdateHead([]string{"A", "B"})

	outcome := pipe.ProcessImage(context.Background(), model.Options{pipeline.OptionImageFile: "g.txt"})
	require.Error(t, outcome.Err)
	assert.True(t, outcome.Failed())
	assert.Nil(t, outcome.Timing)
	assert.ErrorIs(t, outcome.Err, pipeline.ErrStepFault)
	assert.ErrorIs(t, outcome.Err, assert.AnError)

	var fault *pipeline.StepFault
	require.ErrorAs(t, outcome.Err, &fault)
	assert.Equal(t, "A", fault.Step)
	assert.Equal(t, pipeline.HeadSequence, fault.Sequence)
	assert.Equal(t, []string{"A"}, rec.steps("g"))
}

func TestProcessImageFaults(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		methods   map[string]model.Step
		sequences map[string][]string
		wantStep  string
		wantErr   error
	}{
		"panic in regular step": {
			methods: map[string]model.Step{
				"boom": model.Regular(func(context.Context, *model.Image, model.Results, model.Options) (*model.Image, model.Results, error) {
					panic("boom")
				}),
			},
			sequences: map[string][]string{pipeline.HeadSequence: {"boom"}},
			wantStep:  "boom",
		},
		"panic in branch step": {
			methods: map[string]model.Step{
				"branch": model.Branch(func(context.Context, *model.Image, model.Results, model.Options) (string, error) {
					var m map[string]int
					m["x"] = 1

					return "", nil
				}),
			},
			sequences: map[string][]string{pipeline.HeadSequence: {"branch"}},
			wantStep:  "branch",
		},
		"branch error": {
			methods: map[string]model.Step{
				"branch": model.Branch(func(context.Context, *model.Image, model.Results, model.Options) (string, error) {
					return "", assert.AnError
				}),
			},
			sequences: map[string][]string{pipeline.HeadSequence: {"branch"}},
			wantStep:  "branch",
			wantErr:   assert.AnError,
		},
		"unknown step": {
			methods:   map[string]model.Step{},
			sequences: map[string][]string{pipeline.HeadSequence: {"missing"}},
			wantStep:  "missing",
			wantErr:   pipeline.ErrUnknownStep,
		},
		"unknown branch target": {
			methods: map[string]model.Step{
				"branch": model.Branch(func(context.Context, *model.Image, model.Results, model.Options) (string, error) {
					return "nowhere", nil
				}),
			},
			sequences: map[string][]string{pipeline.HeadSequence: {"branch"}},
			wantErr:   pipeline.ErrUnknownSequence,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			loader := newMemLoader(map[string]*model.Image{"g.txt": filledImage(t, 30, 30, 1)})
			pipe := newTestPipeline(t, loader)
			pipe.UpdateMethods(tc.methods)
			require.NoError(t, pipe.UpdateSequences(tc.sequences))

			outcome := pipe.ProcessImage(context.Background(), model.Options{pipeline.OptionImageFile: "g.txt"})
			require.True(t, outcome.Failed())
			assert.ErrorIs(t, outcome.Err, pipeline.ErrStepFault)
			if tc.wantErr != nil {
				assert.ErrorIs(t, outcome.Err, tc.wantErr)
			}

			var fault *pipeline.StepFault
			require.ErrorAs(t, outcome.Err, &fault)
			assert.Equal(t, tc.wantStep, fault.Step)
		})
	}
}

func TestProcessImagePreconditions(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		image   *model.Image
		file    string
		wantErr error
	}{
		"unreadable image": {
			file:    "missing.txt",
			wantErr: pipeline.ErrImageLoad,
		},
		"zero block at centre": {
			image:   holeImage(t, 100, 40),
			file:    "hole.txt",
			wantErr: pipeline.ErrEmptyFrame,
		},
		"nil image": {
			file:    "nil.txt",
			wantErr: pipeline.ErrEmptyFrame,
		},
		"no image file nor name": {
			wantErr: pipeline.ErrNoJobName,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			images := map[string]*model.Image{}
			if tc.image != nil {
				images[tc.file] = tc.image
			}
			loader := newMemLoader(images)
			pipe := newTestPipeline(t, loader)
			if tc.file == "nil.txt" {
				pipe = newTestPipeline(t, loader, pipeline.WithImageLoader(func(string, model.Options) (*model.Image, error) {
					return nil, nil
				}))
			}
			pipe.UpdateMethods(map[string]model.Step{"a": rec.regular("a", nil)})
			pipe.UpdateHead([]string{"a"})

			outcome := pipe.ProcessImage(context.Background(), model.Options{pipeline.OptionImageFile: tc.file})
			require.True(t, outcome.Failed())
			assert.ErrorIs(t, outcome.Err, tc.wantErr)
			assert.NotErrorIs(t, outcome.Err, pipeline.ErrStepFault)
			assert.Empty(t, rec.calls)
		})
	}
}

func TestProcessImageSmallHoleIsNotEmpty(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	loader := newMemLoader(map[string]*model.Image{"g.txt": holeImage(t, 100, 10)})
	pipe := newTestPipeline(t, loader)
	pipe.UpdateMethods(map[string]model.Step{"a": rec.regular("a", nil)})
	pipe.UpdateHead([]string{"a"})

	outcome := pipe.ProcessImage(context.Background(), model.Options{pipeline.OptionImageFile: "g.txt"})
	require.NoError(t, outcome.Err)
}

func TestProcessImageResultsAndImageFlow(t *testing.T) {
	t.Parallel()

	loader := newMemLoader(map[string]*model.Image{"g.txt": filledImage(t, 30, 30, 1)})
	pipe := newTestPipeline(t, loader)

	var seen model.Results
	var seenImage *model.Image
	pipe.UpdateMethods(map[string]model.Step{
		"first": model.Regular(func(_ context.Context, img *model.Image, _ model.Results, _ model.Options) (*model.Image, model.Results, error) {
			out := img.Clone()
			out.Set(0, 0, 42)

			return out, model.Results{"key": 1, "kept": "yes"}, nil
		}),
		"peek": model.Branch(func(_ context.Context, _ *model.Image, results model.Results, _ model.Options) (string, error) {
			results["branch"] = true

			return "", nil
		}),
		"second": model.Regular(func(_ context.Context, img *model.Image, _ model.Results, _ model.Options) (*model.Image, model.Results, error) {
			return img, model.Results{"key": 2}, nil
		}),
		"last": model.Regular(func(_ context.Context, img *model.Image, results model.Results, _ model.Options) (*model.Image, model.Results, error) {
			seen = results
			seenImage = img

			return img, nil, nil
		}),
	})
	pipe.UpdateHead([]string{"first", "peek", "second", "last"})

	outcome := pipe.ProcessImage(context.Background(), model.Options{pipeline.OptionImageFile: "g.txt"})
	require.NoError(t, outcome.Err)
	assert.Equal(t, model.Results{"key": 2, "kept": "yes"}, seen)
	assert.Equal(t, 42.0, seenImage.At(0, 0))
}

func TestProcessImageJobName(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		opts model.Options
		want string
	}{
		"derived from file": {
			opts: model.Options{pipeline.OptionImageFile: "data/deep/galaxy.v2.txt"},
			want: "galaxy",
		},
		"explicit name": {
			opts: model.Options{pipeline.OptionImageFile: "data/deep/galaxy.v2.txt", pipeline.OptionName: "NGC1300"},
			want: "NGC1300",
		},
		"non string name": {
			opts: model.Options{pipeline.OptionImageFile: "data/deep/galaxy.v2.txt", pipeline.OptionName: 12},
			want: "galaxy",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			loader := newMemLoader(map[string]*model.Image{"data/deep/galaxy.v2.txt": filledImage(t, 30, 30, 1)})
			pipe := newTestPipeline(t, loader)
			pipe.UpdateMethods(map[string]model.Step{"a": rec.regular("a", nil)})
			pipe.UpdateHead([]string{"a"})

			outcome := pipe.ProcessImage(context.Background(), tc.opts)
			require.NoError(t, outcome.Err)
			assert.Equal(t, tc.want, outcome.Job)
			assert.Equal(t, []string{"a"}, rec.steps(tc.want))
		})
	}
}

func TestProcessImageDoesNotMutateOptions(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	loader := newMemLoader(map[string]*model.Image{"g.txt": filledImage(t, 30, 30, 1)})
	pipe := newTestPipeline(t, loader)
	pipe.UpdateMethods(map[string]model.Step{"a": rec.regular("a", nil)})
	pipe.UpdateHead([]string{"a"})

	opts := model.Options{pipeline.OptionImageFile: "g.txt"}
	outcome := pipe.ProcessImage(context.Background(), opts)
	require.NoError(t, outcome.Err)
	assert.Equal(t, model.Options{pipeline.OptionImageFile: "g.txt"}, opts)
}

func TestProcessImageCancelled(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	loader := newMemLoader(map[string]*model.Image{"g.txt": filledImage(t, 30, 30, 1)})
	pipe := newTestPipeline(t, loader)

	ctx, cancel := context.WithCancel(context.Background())
	pipe.UpdateMethods(map[string]model.Step{
		"a": model.Regular(func(_ context.Context, img *model.Image, _ model.Results, _ model.Options) (*model.Image, model.Results, error) {
			cancel()

			return img, nil, nil
		}),
		"b": rec.regular("b", nil),
	})
	pipe.UpdateHead([]string{"a", "b"})

	outcome := pipe.ProcessImage(ctx, model.Options{pipeline.OptionImageFile: "g.txt"})
	require.True(t, outcome.Failed())
	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Empty(t, rec.calls)
}

func TestProcessImageRandomGenerator(t *testing.T) {
	t.Parallel()

	loader := newMemLoader(map[string]*model.Image{"g.txt": filledImage(t, 30, 30, 1)})
	pipe := newTestPipeline(t, loader)
	pipe.UpdateMethods(map[string]model.Step{
		"draw": model.Regular(func(ctx context.Context, img *model.Image, _ model.Results, _ model.Options) (*model.Image, model.Results, error) {
			return img, model.Results{"draw": model.RandFrom(ctx).Float64()}, nil
		}),
	})
	pipe.UpdateHead([]string{"draw"})

	outcome := pipe.ProcessImage(context.Background(), model.Options{pipeline.OptionImageFile: "g.txt"})
	require.NoError(t, outcome.Err)
}

func TestProcessImageSpans(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	loader := newMemLoader(map[string]*model.Image{"g.txt": filledImage(t, 30, 30, 1)})
	pipe := newTestPipeline(t, loader, pipeline.WithTracerProvider(provider))
	pipe.UpdateMethods(map[string]model.Step{
		"a":      rec.regular("a", nil),
		"branch": rec.branch("branch", ""),
		"b":      rec.failing("b", assert.AnError),
	})
	pipe.UpdateHead([]string{"a", "branch", "b"})

	outcome := pipe.ProcessImage(context.Background(), model.Options{pipeline.OptionImageFile: "g.txt"})
	require.True(t, outcome.Failed())

	names := map[string]int{}
	for _, span := range spans.Ended() {
		names[span.Name()]++
	}
	assert.Equal(t, map[string]int{"autoprof.job": 1, "autoprof.step": 3}, names)
}

func TestProcessImageHooks(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	hks := newHookRecorder()
	loader := newMemLoader(map[string]*model.Image{"g.txt": filledImage(t, 30, 30, 1)})
	pipe := newTestPipeline(t, loader, pipeline.WithPipelineOptions(hks))
	pipe.UpdateMethods(map[string]model.Step{
		"a":      rec.regular("a", nil),
		"branch": rec.branch("branch", "alt"),
		"c":      rec.regular("c", nil),
	})
	require.NoError(t, pipe.UpdateSequences(map[string][]string{
		pipeline.HeadSequence: {"a", "branch"},
		"alt":                 {"c"},
	}))

	outcome := pipe.ProcessImage(context.Background(), model.Options{pipeline.OptionImageFile: "g.txt"})
	require.NoError(t, outcome.Err)
	assert.Equal(t, 1, hks.started)
	assert.Equal(t, 2, hks.steps)
	assert.Equal(t, []string{"branch->alt"}, hks.branches)
	assert.Equal(t, map[string]error{"g": nil}, hks.jobs)
	assert.Equal(t, 1, hks.finished)
	assert.Len(t, hks.means, 2)
}
