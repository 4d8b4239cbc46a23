package steps

import (
	"context"
	"math"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// Flags written by CheckFit under ResultCheckFit. A true flag means the check passed.
const (
	CheckEnoughIsophotes = "enough isophotes"
	CheckGeometry        = "geometry"
	CheckMonotonic       = "monotonic"
)

const (
	minIsophotes = 3
	// fraction of consecutive isophotes allowed to get brighter outwards
	maxRising = 0.2
)

// CheckFit flags suspicious profiles. It never fails the job.
func CheckFit(_ context.Context, img *model.Image, results model.Results, _ model.Options) (*model.Image, model.Results, error) {
	rows, _ := results[ResultProfile].([]ProfileRow)

	geometry := true
	for _, row := range rows {
		if row.Ellip < 0 || row.Ellip >= 1 || math.IsNaN(row.PA) {
			geometry = false

			break
		}
	}

	var rising, pairs int
	for i := 1; i < len(rows); i++ {
		if math.IsNaN(rows[i].SB) || math.IsNaN(rows[i-1].SB) {
			continue
		}
		pairs++
		if rows[i].SB < rows[i-1].SB {
			rising++
		}
	}

	return img, model.Results{ResultCheckFit: map[string]bool{
		CheckEnoughIsophotes: len(rows) >= minIsophotes,
		CheckGeometry:        geometry,
		CheckMonotonic:       pairs == 0 || float64(rising)/float64(pairs) <= maxRising,
	}}, nil
}
