package model

// Image is a single-band frame stored row-major.
type Image struct {
	Width  int
	Height int
	Pixels []float64
}

// NewImage allocates a zeroed image.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pixels: make([]float64, width*height),
	}
}

// At returns the pixel at column x and row y.
func (img *Image) At(x, y int) float64 {
	return img.Pixels[y*img.Width+x]
}

// Set sets the pixel at column x and row y.
func (img *Image) Set(x, y int, v float64) {
	img.Pixels[y*img.Width+x] = v
}

// In reports whether (x, y) lies inside the frame.
func (img *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < img.Width && y < img.Height
}

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	out := &Image{Width: img.Width, Height: img.Height, Pixels: make([]float64, len(img.Pixels))}
	copy(out.Pixels, img.Pixels)

	return out
}
