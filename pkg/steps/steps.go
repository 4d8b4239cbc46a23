// Package steps provides the built-in step catalogue of the photometry pipeline.
//
// Steps are deliberately simple estimators: they exchange their results through the
// keys below so that any of them can be replaced by a user supplied implementation.
package steps

import (
	"math"
	"slices"

	"github.com/pkg/errors"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// Result keys written by the built-in steps.
const (
	ResultBackground      = "background"
	ResultBackgroundNoise = "background noise"
	ResultPSF             = "psf fwhm"
	ResultCenter          = "center"
	ResultInitEllip       = "init ellip"
	ResultInitPA          = "init pa"
	ResultInitR           = "init R"
	ResultFitR            = "fit R"
	ResultFitEllip        = "fit ellip"
	ResultFitPA           = "fit pa"
	ResultProfile         = "prof data"
	ResultCheckFit        = "checkfit"
)

// Option keys read by the built-in steps.
const (
	OptionZeropoint      = "zeropoint"
	OptionPixscale       = "pixscale"
	OptionPSF            = "psf_fwhm"
	OptionGivenCenter    = "given_center"
	OptionForcingProfile = "forcing_profile"
	OptionSaveTo         = "saveto"
)

const (
	defaultZeropoint = 22.5
	defaultPixscale  = 1.0
)

var (
	ErrMissingResult  = errors.New("missing result")
	ErrNoGivenCenter  = errors.New("given_center option is required")
	ErrNoForcingFile  = errors.New("forcing_profile option is required")
	ErrInvalidProfile = errors.New("invalid profile")
	ErrNoSignal       = errors.New("no signal above the background")
)

// Point is a pixel position.
type Point struct {
	X float64
	Y float64
}

// Methods returns the built-in steps by name.
func Methods() map[string]model.Step {
	return map[string]model.Step{
		"background":             model.Regular(BackgroundMode),
		"background basic":       model.Regular(BackgroundBasic),
		"psf":                    model.Regular(PSFHalfMax),
		"center":                 model.Regular(CenterHillClimb),
		"center OfMass":          model.Regular(CenterOfMass),
		"center forced":          model.Regular(CenterForced),
		"isophoteinit":           model.Regular(IsophoteInit),
		"isophotefit":            model.Regular(IsophoteFit),
		"isophotefit forced":     model.Regular(IsophoteFitForced),
		"isophoteextract":        model.Regular(IsophoteExtract),
		"isophoteextract forced": model.Regular(IsophoteExtract),
		"checkfit":               model.Regular(CheckFit),
		"writeprof":              model.Regular(WriteProf),
	}
}

func resultFloat(results model.Results, key string) (float64, error) {
	v, ok := results[key].(float64)
	if !ok {
		return 0, errors.Wrapf(ErrMissingResult, "%q", key)
	}

	return v, nil
}

func resultFloats(results model.Results, key string) ([]float64, error) {
	v, ok := results[key].([]float64)
	if !ok {
		return nil, errors.Wrapf(ErrMissingResult, "%q", key)
	}

	return v, nil
}

func resultCenter(results model.Results) (Point, error) {
	v, ok := results[ResultCenter].(Point)
	if !ok {
		return Point{}, errors.Wrapf(ErrMissingResult, "%q", ResultCenter)
	}

	return v, nil
}

func optionFloat(opts model.Options, key string, def float64) float64 {
	if v, ok := opts.Float(key); ok {
		return v
	}

	return def
}

// median returns the median of values without modifying them.
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return quantile(sorted, 0.5)
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))

	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// sampleEllipse returns the pixels lying on the ellipse of semi-major axis r around c.
// Points outside the frame are skipped.
func sampleEllipse(img *model.Image, c Point, r, ellip, pa float64) []float64 {
	n := max(16, int(2*math.Pi*r))
	q := 1 - ellip
	sinPA, cosPA := math.Sincos(pa)

	values := make([]float64, 0, n)
	for i := range n {
		theta := 2 * math.Pi * float64(i) / float64(n)
		dx, dy := r*math.Cos(theta), r*q*math.Sin(theta)
		x := int(math.Round(c.X + dx*cosPA - dy*sinPA))
		y := int(math.Round(c.Y + dx*sinPA + dy*cosPA))
		if img.In(x, y) {
			values = append(values, img.At(x, y))
		}
	}

	return values
}
