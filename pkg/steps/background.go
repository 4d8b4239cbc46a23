package steps

import (
	"context"
	"math"
	"slices"
	"sort"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// modeIterations bounds the refinement of the mode on the window around it.
const modeIterations = 3

// BackgroundMode estimates the sky level with the mode of the pixel distribution and its noise
// with the spread of the pixels below the mode. Sources only add flux, so the lower half of the
// distribution is sky.
func BackgroundMode(_ context.Context, img *model.Image, _ model.Results, _ model.Options) (*model.Image, model.Results, error) {
	sorted := slices.Clone(img.Pixels)
	slices.Sort(sorted)

	mode := halfSampleMode(sorted)
	noise := lowerRMS(sorted, mode)
	for range modeIterations {
		lo := sort.SearchFloat64s(sorted, mode-2*noise)
		hi := sort.Search(len(sorted), func(i int) bool { return sorted[i] > mode+2*noise })
		if hi <= lo {
			break
		}
		mode = mean(sorted[lo:hi])
		noise = lowerRMS(sorted, mode)
	}

	return img, model.Results{
		ResultBackground:      mode,
		ResultBackgroundNoise: noise,
	}, nil
}

// halfSampleMode repeatedly keeps the densest half of sorted until three values remain.
func halfSampleMode(sorted []float64) float64 {
	s := sorted
	for len(s) > 3 {
		half := (len(s) + 1) / 2
		best, width := 0, math.Inf(1)
		for i := 0; i+half <= len(s); i++ {
			if w := s[i+half-1] - s[i]; w < width {
				best, width = i, w
			}
		}
		s = s[best : best+half]
	}

	switch len(s) {
	case 0:
		return math.NaN()
	case 1:
		return s[0]
	case 2:
		return (s[0] + s[1]) / 2
	}
	lo, hi := s[1]-s[0], s[2]-s[1]
	switch {
	case lo < hi:
		return (s[0] + s[1]) / 2
	case lo > hi:
		return (s[1] + s[2]) / 2
	}

	return s[1]
}

// lowerRMS is the root mean square distance to center of the values below it.
func lowerRMS(sorted []float64, center float64) float64 {
	var sq float64
	var n int
	for _, v := range sorted {
		if v >= center {
			break
		}
		sq += (v - center) * (v - center)
		n++
	}
	if n == 0 {
		return 0
	}

	return math.Sqrt(sq / float64(n))
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// BackgroundBasic uses the mean and the standard deviation of the frame.
func BackgroundBasic(_ context.Context, img *model.Image, _ model.Results, _ model.Options) (*model.Image, model.Results, error) {
	avg := mean(img.Pixels)
	var sq float64
	for _, v := range img.Pixels {
		sq += (v - avg) * (v - avg)
	}

	return img, model.Results{
		ResultBackground:      avg,
		ResultBackgroundNoise: math.Sqrt(sq / float64(len(img.Pixels))),
	}, nil
}
