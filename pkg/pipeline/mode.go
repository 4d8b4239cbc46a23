package pipeline

import (
	"github.com/pkg/errors"
)

// Mode selects the built-in head sequence.
type Mode string

const (
	// ModeStandard fits the isophotes of each image.
	ModeStandard Mode = "standard"
	// ModeForced reuses an externally supplied geometry instead of fitting it.
	ModeForced Mode = "forced"
)

var ErrUnknownMode = errors.New("unknown pipeline mode")

// DefaultSequences returns the built-in sequence graph of mode.
func DefaultSequences(mode Mode) (map[string][]string, error) {
	switch mode {
	case ModeStandard, "":
		return map[string][]string{
			HeadSequence: {
				"background", "psf", "center", "isophoteinit",
				"isophotefit", "isophoteextract", "checkfit", "writeprof",
			},
		}, nil
	case ModeForced:
		return map[string][]string{
			HeadSequence: {
				"background", "psf", "center forced",
				"isophotefit forced", "isophoteextract forced", "writeprof",
			},
		}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownMode, "%q", mode)
	}
}

// ApplyMode replaces the head sequence with the built-in one of mode.
// User updates must be applied afterwards to take precedence.
func (p *Pipeline) ApplyMode(mode Mode) error {
	sequences, err := DefaultSequences(mode)
	if err != nil {
		return err
	}
	p.UpdateHead(sequences[HeadSequence])

	return nil
}
