package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrImageLoad         = errors.New("unable to load image")
	ErrEmptyFrame        = errors.New("large chunk of data missing, impossible to process image")
	ErrStepFault         = errors.New("step fault")
	ErrSequenceConfig    = errors.New("sequences must contain a head sequence")
	ErrAllImagesFailed   = errors.New("all images failed to process")
	ErrNoJobName         = errors.New("job name must be set")
	ErrImageListRequired = errors.New("image_file must be a list of images")
	ErrNoImages          = errors.New("image list must not be empty")
	ErrOptionsLength     = errors.New("list option length must match the image list")
	ErrUnknownStep       = errors.New("step not found in pipeline methods")
	ErrUnknownSequence   = errors.New("sequence not found in pipeline steps")
	ErrUnknownStepKind   = errors.New("unsupported step kind")
)

// StepFault is returned when a step invocation fails during a job.
// It matches ErrStepFault with errors.Is.
type StepFault struct {
	Sequence string
	Step     string
	Err      error
}

func (f *StepFault) Error() string {
	return fmt.Sprintf("on step %q of sequence %q: %v", f.Step, f.Sequence, f.Err)
}

func (f *StepFault) Unwrap() error {
	return f.Err
}

func (f *StepFault) Is(target error) bool {
	return target == ErrStepFault //nolint:errorlint
}
