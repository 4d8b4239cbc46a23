// Package imageio reads single-band frames stored as text matrices, one image row per line.
package imageio

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

var (
	ErrEmptyImage  = errors.New("image has no pixels")
	ErrRaggedImage = errors.New("image rows have different lengths")
)

// ReadImage reads the image at path. Values are separated by whitespace or commas;
// blank lines and lines starting with '#' are skipped.
func ReadImage(path string, _ model.Options) (*model.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open image %s", path)
	}
	defer file.Close()

	img, err := Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode image %s", path)
	}

	return img, nil
}

// Decode reads a text matrix from r.
func Decode(r io.Reader) (*model.Image, error) {
	img := &model.Image{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if img.Height == 0 {
			img.Width = len(fields)
		} else if len(fields) != img.Width {
			return nil, errors.Wrapf(ErrRaggedImage, "line %d has %d values, want %d", line, len(fields), img.Width)
		}

		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			img.Pixels = append(img.Pixels, v)
		}
		img.Height++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "unable to scan image")
	}
	if len(img.Pixels) == 0 {
		return nil, ErrEmptyImage
	}

	return img, nil
}

// WriteImage writes img to path in the format read by ReadImage, creating missing directories.
func WriteImage(path string, img *model.Image) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return errors.Wrapf(err, "unable to create directory for %s", path)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create image %s", path)
	}

	err = Encode(file, img)
	if err != nil {
		_ = file.Close()

		return err
	}

	return errors.Wrapf(file.Close(), "unable to close image %s", path)
}

// Encode writes img to w as a text matrix.
func Encode(w io.Writer, img *model.Image) error {
	buf := bufio.NewWriter(w)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if x > 0 {
				_ = buf.WriteByte(' ')
			}
			_, _ = buf.WriteString(strconv.FormatFloat(img.At(x, y), 'g', -1, 64))
		}
		_ = buf.WriteByte('\n')
	}

	return errors.Wrap(buf.Flush(), "unable to write image")
}
