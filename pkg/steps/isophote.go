package steps

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// IsophoteInit estimates a global ellipse from the second moments of the pixels
// at least three noise levels above the background.
func IsophoteInit(_ context.Context, img *model.Image, results model.Results, _ model.Options) (*model.Image, model.Results, error) {
	bkg, err := resultFloat(results, ResultBackground)
	if err != nil {
		return nil, nil, err
	}
	noise, err := resultFloat(results, ResultBackgroundNoise)
	if err != nil {
		return nil, nil, err
	}
	c, err := resultCenter(results)
	if err != nil {
		return nil, nil, err
	}

	var ixx, iyy, ixy, sw float64
	for y := range img.Height {
		for x := range img.Width {
			w := img.At(x, y) - bkg
			if w <= 3*noise || w <= 0 {
				continue
			}
			dx, dy := float64(x)-c.X, float64(y)-c.Y
			ixx += w * dx * dx
			iyy += w * dy * dy
			ixy += w * dx * dy
			sw += w
		}
	}
	if sw == 0 {
		return nil, nil, errors.Wrap(ErrNoSignal, "unable to initialise isophotes")
	}
	ixx, iyy, ixy = ixx/sw, iyy/sw, ixy/sw

	// eigenvalues of the moment matrix
	tr, det := ixx+iyy, ixx*iyy-ixy*ixy
	disc := math.Sqrt(max(0, tr*tr/4-det))
	l1, l2 := tr/2+disc, max(tr/2-disc, 0)

	ellip := 0.0
	if l1 > 0 {
		ellip = 1 - math.Sqrt(l2/l1)
	}
	pa := math.Mod(0.5*math.Atan2(2*ixy, ixx-iyy)+math.Pi, math.Pi)

	return img, model.Results{
		ResultInitEllip: min(ellip, 0.95),
		ResultInitPA:    pa,
		ResultInitR:     2 * math.Sqrt(l1),
	}, nil
}

const (
	fitGrowth    = 1.1
	maxIsophotes = 200
)

// IsophoteFit grows geometrically spaced isophotes with the initial geometry until
// their median flux sinks into the noise or they leave the frame.
func IsophoteFit(_ context.Context, img *model.Image, results model.Results, _ model.Options) (*model.Image, model.Results, error) {
	bkg, err := resultFloat(results, ResultBackground)
	if err != nil {
		return nil, nil, err
	}
	noise, err := resultFloat(results, ResultBackgroundNoise)
	if err != nil {
		return nil, nil, err
	}
	c, err := resultCenter(results)
	if err != nil {
		return nil, nil, err
	}
	ellip, err := resultFloat(results, ResultInitEllip)
	if err != nil {
		return nil, nil, err
	}
	pa, err := resultFloat(results, ResultInitPA)
	if err != nil {
		return nil, nil, err
	}
	psf, err := resultFloat(results, ResultPSF)
	if err != nil {
		psf = 1
	}

	var radii, ellips, pas []float64
	for r := max(1, psf/2); len(radii) < maxIsophotes; r *= fitGrowth {
		values := sampleEllipse(img, c, r, ellip, pa)
		if len(values) == 0 {
			break
		}
		radii = append(radii, r)
		ellips = append(ellips, ellip)
		pas = append(pas, pa)
		if median(values)-bkg < noise {
			break
		}
	}

	return img, model.Results{
		ResultFitR:     radii,
		ResultFitEllip: ellips,
		ResultFitPA:    pas,
	}, nil
}

// IsophoteFitForced takes the isophote geometry from the profile named by forcing_profile.
func IsophoteFitForced(_ context.Context, img *model.Image, _ model.Results, opts model.Options) (*model.Image, model.Results, error) {
	path := opts.String(OptionForcingProfile)
	if path == "" {
		return nil, nil, ErrNoForcingFile
	}

	rows, err := ReadProfile(path)
	if err != nil {
		return nil, nil, err
	}

	pixscale := optionFloat(opts, OptionPixscale, defaultPixscale)
	radii := make([]float64, len(rows))
	ellips := make([]float64, len(rows))
	pas := make([]float64, len(rows))
	for i, row := range rows {
		radii[i] = row.R / pixscale
		ellips[i] = row.Ellip
		pas[i] = row.PA * math.Pi / 180
	}

	return img, model.Results{
		ResultFitR:     radii,
		ResultFitEllip: ellips,
		ResultFitPA:    pas,
	}, nil
}

// IsophoteExtract measures the surface brightness along every fitted isophote.
// Isophotes with no positive flux get a NaN surface brightness.
func IsophoteExtract(_ context.Context, img *model.Image, results model.Results, opts model.Options) (*model.Image, model.Results, error) {
	bkg, err := resultFloat(results, ResultBackground)
	if err != nil {
		return nil, nil, err
	}
	noise, err := resultFloat(results, ResultBackgroundNoise)
	if err != nil {
		return nil, nil, err
	}
	c, err := resultCenter(results)
	if err != nil {
		return nil, nil, err
	}
	radii, err := resultFloats(results, ResultFitR)
	if err != nil {
		return nil, nil, err
	}
	ellips, err := resultFloats(results, ResultFitEllip)
	if err != nil {
		return nil, nil, err
	}
	pas, err := resultFloats(results, ResultFitPA)
	if err != nil {
		return nil, nil, err
	}
	if len(ellips) != len(radii) || len(pas) != len(radii) {
		return nil, nil, errors.Wrap(ErrInvalidProfile, "fitted geometry has mismatched lengths")
	}

	zeropoint := optionFloat(opts, OptionZeropoint, defaultZeropoint)
	pixscale := optionFloat(opts, OptionPixscale, defaultPixscale)
	area := pixscale * pixscale

	rows := make([]ProfileRow, 0, len(radii))
	for i, r := range radii {
		row := ProfileRow{R: r * pixscale, Ellip: ellips[i], PA: pas[i] * 180 / math.Pi, SB: math.NaN(), SBErr: math.NaN()}
		values := sampleEllipse(img, c, r, ellips[i], pas[i])
		flux := median(values) - bkg
		if len(values) > 0 && flux > 0 {
			row.SB = zeropoint - 2.5*math.Log10(flux/area)
			row.SBErr = 2.5 / math.Ln10 * noise / math.Sqrt(float64(len(values))) / flux
		}
		rows = append(rows, row)
	}

	return img, model.Results{ResultProfile: rows}, nil
}
