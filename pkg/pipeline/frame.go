package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// emptyWindow is the side of the centred window that must hold at least one non-zero pixel.
const emptyWindow = 20

// jobName returns the name option, or the image file name without directory and extension.
func jobName(opts model.Options) string {
	if name := opts.String(OptionName); name != "" {
		return name
	}

	file := opts.String(OptionImageFile)
	if file == "" {
		return ""
	}
	base := filepath.Base(file)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}

	return base
}

// emptyFrame reports whether img is missing or its centred window is uniformly zero.
// The window is clamped to the frame.
func emptyFrame(img *model.Image) bool {
	if img == nil || img.Width <= 0 || img.Height <= 0 || len(img.Pixels) < img.Width*img.Height {
		return true
	}

	half := emptyWindow / 2
	cx, cy := img.Width/2, img.Height/2
	for y := max(cy-half, 0); y < min(cy+half, img.Height); y++ {
		for x := max(cx-half, 0); x < min(cx+half, img.Width); x++ {
			if img.At(x, y) != 0 {
				return false
			}
		}
	}

	return true
}
