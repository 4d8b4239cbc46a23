package steps

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// CenterHillClimb climbs from the middle of the frame to the nearest local maximum
// of the 3x3 box-smoothed image.
func CenterHillClimb(_ context.Context, img *model.Image, _ model.Results, _ model.Options) (*model.Image, model.Results, error) {
	x, y := img.Width/2, img.Height/2
	for range img.Width + img.Height {
		bx, by, best := x, y, boxMean(img, x, y)
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if !img.In(x+dx, y+dy) {
					continue
				}
				if v := boxMean(img, x+dx, y+dy); v > best {
					bx, by, best = x+dx, y+dy, v
				}
			}
		}
		if bx == x && by == y {
			break
		}
		x, y = bx, by
	}

	return img, model.Results{ResultCenter: Point{X: float64(x), Y: float64(y)}}, nil
}

func boxMean(img *model.Image, x, y int) float64 {
	var sum float64
	var n int
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if img.In(x+dx, y+dy) {
				sum += img.At(x+dx, y+dy)
				n++
			}
		}
	}

	return sum / float64(n)
}

const centroidIterations = 10

// CenterOfMass iterates the flux weighted centroid of the background subtracted pixels
// within a quarter of the frame around the current estimate.
func CenterOfMass(_ context.Context, img *model.Image, results model.Results, _ model.Options) (*model.Image, model.Results, error) {
	bkg, err := resultFloat(results, ResultBackground)
	if err != nil {
		return nil, nil, err
	}

	c := Point{X: float64(img.Width) / 2, Y: float64(img.Height) / 2}
	radius := float64(min(img.Width, img.Height)) / 4
	for range centroidIterations {
		var sx, sy, sw float64
		for y := max(0, int(c.Y-radius)); y < min(img.Height, int(c.Y+radius)+1); y++ {
			for x := max(0, int(c.X-radius)); x < min(img.Width, int(c.X+radius)+1); x++ {
				w := img.At(x, y) - bkg
				if w <= 0 || math.Hypot(float64(x)-c.X, float64(y)-c.Y) > radius {
					continue
				}
				sx += w * float64(x)
				sy += w * float64(y)
				sw += w
			}
		}
		if sw == 0 {
			return nil, nil, errors.Wrap(ErrNoSignal, "unable to compute centroid")
		}
		next := Point{X: sx / sw, Y: sy / sw}
		done := math.Hypot(next.X-c.X, next.Y-c.Y) < 0.01
		c = next
		if done {
			break
		}
	}

	return img, model.Results{ResultCenter: c}, nil
}

// CenterForced reads the centre from the given_center option, a mapping with x and y keys.
func CenterForced(_ context.Context, img *model.Image, _ model.Results, opts model.Options) (*model.Image, model.Results, error) {
	var x, y any
	switch v := opts[OptionGivenCenter].(type) {
	// configuration files decode nested mappings as model.Options
	case model.Options:
		x, y = v["x"], v["y"]
	case map[string]any:
		x, y = v["x"], v["y"]
	case map[string]float64:
		x, y = v["x"], v["y"]
	case Point:
		return img, model.Results{ResultCenter: v}, nil
	default:
		return nil, nil, ErrNoGivenCenter
	}

	coords := model.Options{"x": x, "y": y}
	cx, okX := coords.Float("x")
	cy, okY := coords.Float("y")
	if !okX || !okY {
		return nil, nil, errors.Wrapf(ErrNoGivenCenter, "got x=%v y=%v", x, y)
	}

	return img, model.Results{ResultCenter: Point{X: cx, Y: cy}}, nil
}
