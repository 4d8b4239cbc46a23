package config_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-autoprof/internal/config"
	"github.com/askiada/go-autoprof/pkg/pipeline"
	"github.com/askiada/go-autoprof/pkg/pipeline/model"
	"github.com/askiada/go-autoprof/pkg/steps"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "autoprof.yaml")
	writeFile(t, path, content)

	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		content  string
		wantErr  error
		validate func(t *testing.T, cfg *config.Config)
	}{
		"single image": {
			content: `
options:
  image_file: galaxy.txt
  zeropoint: 22.5
  n_procs: 2
`,
			validate: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, config.ProcessImage, cfg.ProcessMode)
				assert.Equal(t, "galaxy.txt", cfg.Options.String(pipeline.OptionImageFile))
				zp, ok := cfg.Options.Float("zeropoint")
				assert.True(t, ok)
				assert.InDelta(t, 22.5, zp, 1e-9)
				workers, ok := cfg.Options.Int(pipeline.OptionWorkers)
				assert.True(t, ok)
				assert.Equal(t, 2, workers)
			},
		},
		"image list with head": {
			content: `
process_mode: image list
options:
  image_file: [a.txt, b.txt]
  zeropoint: [22.5, 23]
new_pipeline_steps: [background, psf, center, writeprof]
new_pipeline_methods:
  center: center OfMass
`,
			validate: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, []any{"a.txt", "b.txt"}, cfg.Options[pipeline.OptionImageFile])
				assert.Equal(t, []string{"background", "psf", "center", "writeprof"}, cfg.NewPipelineSteps.Head)
				assert.Nil(t, cfg.NewPipelineSteps.Sequences)
				assert.Equal(t, map[string]string{"center": "center OfMass"}, cfg.NewPipelineMethods)
			},
		},
		"sequence graph": {
			content: `
process_mode: forced image
options:
  image_file: a.txt
  given_center: {x: 10, y: 12.5}
new_pipeline_steps:
  head: [background, check]
  refit: [isophotefit]
`,
			validate: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.True(t, cfg.ProcessMode.Forced())
				assert.Nil(t, cfg.NewPipelineSteps.Head)
				assert.Equal(t, map[string][]string{
					"head":  {"background", "check"},
					"refit": {"isophotefit"},
				}, cfg.NewPipelineSteps.Sequences)
				assert.Equal(t, model.Options{"x": 10, "y": 12.5}, cfg.Options["given_center"])
			},
		},
		"unknown mode": {
			content: "process_mode: sideways\noptions: {image_file: a.txt}\n",
			wantErr: config.ErrUnknownProcessMode,
		},
		"list in single mode": {
			content: "options: {image_file: [a.txt]}\n",
			wantErr: config.ErrImageFile,
		},
		"scalar in list mode": {
			content: "process_mode: image list\noptions: {image_file: a.txt}\n",
			wantErr: config.ErrImageFile,
		},
		"missing image": {
			content: "process_mode: image\n",
			wantErr: config.ErrImageFile,
		},
		"scalar steps": {
			content: "options: {image_file: a.txt}\nnew_pipeline_steps: background\n",
			wantErr: config.ErrSteps,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.Load(writeConfig(t, t.TempDir(), tc.content))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)

				return
			}
			require.NoError(t, err)
			tc.validate(t, cfg)
		})
	}
}

func TestLoadGivenCenter(t *testing.T) {
	t.Parallel()

	centerForced, ok := steps.Methods()["center forced"].(model.Regular)
	require.True(t, ok)
	img := model.NewImage(4, 4)

	t.Run("single image", func(t *testing.T) {
		t.Parallel()

		cfg, err := config.Load(writeConfig(t, t.TempDir(), `
process_mode: forced image
options:
  image_file: a.txt
  given_center: {x: 10, y: 12.5}
`))
		require.NoError(t, err)

		_, res, err := centerForced(context.Background(), img, model.Results{}, cfg.Options)
		require.NoError(t, err)
		assert.Equal(t, steps.Point{X: 10, Y: 12.5}, res[steps.ResultCenter])
	})

	t.Run("image list", func(t *testing.T) {
		t.Parallel()

		cfg, err := config.Load(writeConfig(t, t.TempDir(), `
process_mode: forced image list
options:
  image_file: [a.txt, b.txt]
  given_center:
    - {x: 1, y: 2}
    - {x: 3.5, y: 4}
`))
		require.NoError(t, err)

		perImage, err := pipeline.Broadcast(cfg.Options, 2)
		require.NoError(t, err)
		want := []steps.Point{{X: 1, Y: 2}, {X: 3.5, Y: 4}}
		for i, opts := range perImage {
			_, res, err := centerForced(context.Background(), img, model.Results{}, opts)
			require.NoError(t, err, "image %d", i)
			assert.Equal(t, want[i], res[steps.ResultCenter], "image %d", i)
		}
	})
}

func TestLoadTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := config.Load(writeConfig(t, dir, `
process_mode: image list
options:
  image_file:
{{- range $i := until 3 }}
    - {{ printf "frame_%02d.txt" $i }}
{{- end }}
  saveto: {{ .Dir }}/profiles
  zeropoint: {{ add 20 2 }}
`))
	require.NoError(t, err)
	assert.Equal(t, []any{"frame_00.txt", "frame_01.txt", "frame_02.txt"}, cfg.Options[pipeline.OptionImageFile])
	assert.Equal(t, dir+"/profiles", cfg.Options.String("saveto"))
	assert.Equal(t, 22, cfg.Options["zeropoint"])

	_, err = config.Load(writeConfig(t, dir, "options: {{ .Missing"))
	assert.ErrorContains(t, err, "parsing configuration template")
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading configuration file")
}

func TestLoadImageGlob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"data/b.txt", "data/a.txt", "data/deep/c.txt", "data/skip.csv"} {
		writeFile(t, filepath.Join(dir, name), "1\n")
	}

	cfg, err := config.Load(writeConfig(t, dir, "process_mode: image list\nimage_glob: data/**/*.txt\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "data", "a.txt"),
		filepath.Join(dir, "data", "b.txt"),
		filepath.Join(dir, "data", "deep", "c.txt"),
	}, cfg.Options[pipeline.OptionImageFile])

	cfg, err = config.Load(writeConfig(t, dir, "image_glob: "+filepath.Join(dir, "data", "a.*")+"\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "a.txt"), cfg.Options[pipeline.OptionImageFile])

	_, err = config.Load(writeConfig(t, dir, "image_glob: data/*.txt\n"))
	require.ErrorIs(t, err, config.ErrImageFile)

	_, err = config.Load(writeConfig(t, dir, "process_mode: image list\nimage_glob: nothing/*.fits\n"))
	assert.ErrorIs(t, err, config.ErrNoImages)
}

//nolint:paralleltest // sets environment variables
func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	writeFile(t, envFile, "AUTOPROF_TEST_SAVETO=/tmp/profiles\n")
	t.Cleanup(func() { _ = os.Unsetenv("AUTOPROF_TEST_SAVETO") })

	require.NoError(t, config.LoadEnv(envFile))
	cfg, err := config.Load(writeConfig(t, dir, "options:\n  image_file: a.txt\n  saveto: ${AUTOPROF_TEST_SAVETO}\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/profiles", cfg.Options.String("saveto"))

	assert.Error(t, config.LoadEnv(filepath.Join(dir, "missing.env")))
}

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()

	pipe, err := pipeline.New(pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	return pipe
}

func TestApply(t *testing.T) {
	t.Parallel()

	noop := model.Regular(func(_ context.Context, img *model.Image, _ model.Results, _ model.Options) (*model.Image, model.Results, error) {
		return img, nil, nil
	})
	catalogue := map[string]model.Step{"center OfMass": noop, "psf": noop}

	t.Run("forced head", func(t *testing.T) {
		t.Parallel()

		pipe := newPipeline(t)
		cfg := &config.Config{ProcessMode: config.ProcessForcedImageList}
		require.NoError(t, cfg.Apply(pipe, catalogue))

		want, err := pipeline.DefaultSequences(pipeline.ModeForced)
		require.NoError(t, err)
		assert.Equal(t, want, pipe.Sequences())
	})

	t.Run("user head wins over mode", func(t *testing.T) {
		t.Parallel()

		pipe := newPipeline(t)
		cfg := &config.Config{
			ProcessMode:        config.ProcessForcedImage,
			NewPipelineMethods: map[string]string{"center": "center OfMass"},
			NewPipelineSteps:   config.Steps{Head: []string{"psf", "center"}},
		}
		require.NoError(t, cfg.Apply(pipe, catalogue))
		assert.Equal(t, []string{"psf", "center"}, pipe.Sequences()[pipeline.HeadSequence])
		assert.Equal(t, []string{"center"}, pipe.Methods())
	})

	t.Run("sequence graph", func(t *testing.T) {
		t.Parallel()

		pipe := newPipeline(t)
		sequences := map[string][]string{"head": {"psf"}, "other": {"center"}}
		cfg := &config.Config{ProcessMode: config.ProcessImage, NewPipelineSteps: config.Steps{Sequences: sequences}}
		require.NoError(t, cfg.Apply(pipe, catalogue))
		assert.Equal(t, sequences, pipe.Sequences())
	})

	t.Run("graph without head", func(t *testing.T) {
		t.Parallel()

		pipe := newPipeline(t)
		cfg := &config.Config{NewPipelineSteps: config.Steps{Sequences: map[string][]string{"other": {"psf"}}}}
		assert.ErrorIs(t, cfg.Apply(pipe, catalogue), pipeline.ErrSequenceConfig)
	})

	t.Run("unknown alias", func(t *testing.T) {
		t.Parallel()

		pipe := newPipeline(t)
		cfg := &config.Config{NewPipelineMethods: map[string]string{"center": "center 2DGaussian"}}
		assert.ErrorIs(t, cfg.Apply(pipe, catalogue), config.ErrUnknownAlias)
	})
}
