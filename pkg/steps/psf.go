package steps

import (
	"context"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// PSFHalfMax measures the full width at half maximum of the brightest source of the frame.
// The psf_fwhm option bypasses the measurement.
func PSFHalfMax(_ context.Context, img *model.Image, results model.Results, opts model.Options) (*model.Image, model.Results, error) {
	if fwhm, ok := opts.Float(OptionPSF); ok {
		return img, model.Results{ResultPSF: fwhm}, nil
	}

	bkg, err := resultFloat(results, ResultBackground)
	if err != nil {
		return nil, nil, err
	}

	peak := 0
	for i, v := range img.Pixels {
		if v > img.Pixels[peak] {
			peak = i
		}
	}
	px, py := peak%img.Width, peak/img.Width
	half := (img.Pixels[peak] - bkg) / 2
	if half <= 0 {
		return img, model.Results{ResultPSF: 1.0}, nil
	}

	// mean radius at which the four axis profiles drop under half the peak
	var total float64
	for _, dir := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		r := 0
		for x, y := px+dir[0], py+dir[1]; img.In(x, y) && img.At(x, y)-bkg > half; x, y = x+dir[0], y+dir[1] {
			r++
		}
		total += float64(r) + 0.5
	}

	return img, model.Results{ResultPSF: max(1, total/2)}, nil
}
