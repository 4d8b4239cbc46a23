// Package config loads the YAML run configuration of the autoprof command.
package config

import (
	"bytes"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-autoprof/pkg/pipeline"
	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// ProcessMode selects how the images of a run are processed.
type ProcessMode string

const (
	ProcessImage           ProcessMode = "image"
	ProcessImageList       ProcessMode = "image list"
	ProcessForcedImage     ProcessMode = "forced image"
	ProcessForcedImageList ProcessMode = "forced image list"
)

var (
	ErrUnknownProcessMode = errors.New("unknown process mode")
	ErrNoImages           = errors.New("no image matches")
	ErrImageFile          = errors.New("invalid image_file option")
	ErrSteps              = errors.New("new_pipeline_steps must be a list or a mapping")
	ErrUnknownAlias       = errors.New("unknown step alias target")
)

// Forced reports whether the mode reuses an external geometry.
func (m ProcessMode) Forced() bool {
	return m == ProcessForcedImage || m == ProcessForcedImageList
}

// List reports whether the mode processes a list of images.
func (m ProcessMode) List() bool {
	return m == ProcessImageList || m == ProcessForcedImageList
}

// Mode returns the pipeline mode providing the default head sequence.
func (m ProcessMode) Mode() pipeline.Mode {
	if m.Forced() {
		return pipeline.ModeForced
	}

	return pipeline.ModeStandard
}

// Steps holds new_pipeline_steps: either a flat list replacing the head sequence,
// or a mapping replacing the whole sequence graph.
type Steps struct {
	Head      []string
	Sequences map[string][]string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Steps) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		return node.Decode(&s.Head)
	case yaml.MappingNode:
		return node.Decode(&s.Sequences)
	default:
		return errors.Wrapf(ErrSteps, "line %d", node.Line)
	}
}

// Config is the run configuration file format.
type Config struct {
	ProcessMode ProcessMode   `yaml:"process_mode"`
	ImageGlob   string        `yaml:"image_glob"`
	Options     model.Options `yaml:"options"`
	// NewPipelineMethods registers existing steps under other names.
	NewPipelineMethods map[string]string `yaml:"new_pipeline_methods"`
	NewPipelineSteps   Steps             `yaml:"new_pipeline_steps"`

	// Set by the loader, not from YAML.
	Dir string `yaml:"-"`
}

// LoadEnv loads the given .env files, or ./.env when none is given.
// A missing default file is not an error.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && (len(files) > 0 || !errors.Is(err, os.ErrNotExist)) {
		return errors.Wrap(err, "unable to load .env")
	}

	return nil
}

// templateData is the data available to a configuration file rendered as a template.
type templateData struct {
	// Dir is the absolute directory of the configuration file.
	Dir string
}

// Load reads and validates a configuration file. The file is first rendered as a Go template
// with the sprig functions, then environment variables referenced as $VAR or ${VAR} are expanded.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "reading configuration file")
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, errors.Wrap(err, "resolving absolute path")
	}
	dir := filepath.Dir(absPath)

	tmpl, err := template.New(filepath.Base(filename)).Funcs(sprig.FuncMap()).Parse(string(data))
	if err != nil {
		return nil, errors.Wrap(err, "parsing configuration template")
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, templateData{Dir: dir})
	if err != nil {
		return nil, errors.Wrap(err, "executing configuration template")
	}

	cfg := &Config{}
	err = yaml.Unmarshal([]byte(os.ExpandEnv(buf.String())), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "parsing configuration file")
	}
	cfg.Dir = dir

	err = cfg.validate()
	if err != nil {
		return nil, errors.Wrapf(err, "validating configuration %s", filename)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ProcessMode {
	case "":
		c.ProcessMode = ProcessImage
	case ProcessImage, ProcessImageList, ProcessForcedImage, ProcessForcedImageList:
	default:
		return errors.Wrapf(ErrUnknownProcessMode, "%q", c.ProcessMode)
	}

	if c.Options == nil {
		c.Options = model.Options{}
	}

	if c.ImageGlob != "" {
		files, err := c.globImages()
		if err != nil {
			return err
		}
		if c.ProcessMode.List() {
			c.Options[pipeline.OptionImageFile] = files
		} else {
			if len(files) > 1 {
				return errors.Wrapf(ErrImageFile, "%d images match %q in single image mode", len(files), c.ImageGlob)
			}
			c.Options[pipeline.OptionImageFile] = files[0]
		}
	}

	images := c.Options[pipeline.OptionImageFile]
	if c.ProcessMode.List() != model.IsList(images) {
		return errors.Wrapf(ErrImageFile, "%T in %s mode", images, c.ProcessMode)
	}
	if !c.ProcessMode.List() && c.Options.String(pipeline.OptionImageFile) == "" {
		return errors.Wrap(ErrImageFile, "image_file must be a file name")
	}

	return nil
}

// globImages expands image_glob relative to the configuration directory.
func (c *Config) globImages() ([]string, error) {
	pattern := c.ImageGlob
	base := c.Dir
	if filepath.IsAbs(pattern) {
		base, pattern = doublestar.SplitPattern(filepath.ToSlash(pattern))
	}

	matches, err := doublestar.Glob(os.DirFS(base), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "glob %q", c.ImageGlob)
	}
	if len(matches) == 0 {
		return nil, errors.Wrapf(ErrNoImages, "%q", c.ImageGlob)
	}

	slices.Sort(matches)
	files := make([]string, len(matches))
	for i, match := range matches {
		files[i] = filepath.Join(base, filepath.FromSlash(match))
	}

	return files, nil
}

// Apply configures pipe: the mode's head sequence first, then the user's aliases and sequences.
// Aliases are resolved against catalogue.
func (c *Config) Apply(pipe *pipeline.Pipeline, catalogue map[string]model.Step) error {
	err := pipe.ApplyMode(c.ProcessMode.Mode())
	if err != nil {
		return err
	}

	if len(c.NewPipelineMethods) > 0 {
		methods := make(map[string]model.Step, len(c.NewPipelineMethods))
		for _, name := range slices.Sorted(maps.Keys(c.NewPipelineMethods)) {
			target := c.NewPipelineMethods[name]
			step, ok := catalogue[target]
			if !ok {
				return errors.Wrapf(ErrUnknownAlias, "%s -> %s", name, target)
			}
			methods[name] = step
		}
		pipe.UpdateMethods(methods)
	}

	pipe.UpdateHead(c.NewPipelineSteps.Head)

	return pipe.UpdateSequences(c.NewPipelineSteps.Sequences)
}
