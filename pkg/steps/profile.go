package steps

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/askiada/go-autoprof/pkg/pipeline"
	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// ProfileRow is one isophote of a surface brightness profile.
// R is in arcsec, SB in mag/arcsec^2 and PA in degrees.
type ProfileRow struct {
	R     float64
	SB    float64
	SBErr float64
	Ellip float64
	PA    float64
}

var (
	profileHeader = []string{"R", "SB", "SB_e", "ellip", "pa"}
	profileUnits  = []string{"arcsec", "mag*arcsec^-2", "mag*arcsec^-2", "unitless", "deg"}
)

// ProfileExt is the extension of the files written by WriteProf.
const ProfileExt = ".prof"

// WriteProf writes the extracted profile to <saveto>/<name>.prof.
func WriteProf(_ context.Context, img *model.Image, results model.Results, opts model.Options) (*model.Image, model.Results, error) {
	rows, ok := results[ResultProfile].([]ProfileRow)
	if !ok {
		return nil, nil, errors.Wrapf(ErrMissingResult, "%q", ResultProfile)
	}

	dir := opts.String(OptionSaveTo)
	if dir == "" {
		dir = "."
	}
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to create directory %s", dir)
	}

	path := filepath.Join(dir, opts.String(pipeline.OptionName)+ProfileExt)
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to create profile %s", path)
	}

	err = EncodeProfile(file, rows)
	if err != nil {
		_ = file.Close()

		return nil, nil, errors.Wrapf(err, "unable to write profile %s", path)
	}

	err = file.Close()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to close profile %s", path)
	}

	return img, nil, nil
}

// EncodeProfile writes rows as CSV, with a header line and a units line.
func EncodeProfile(w io.Writer, rows []ProfileRow) error {
	wrt := csv.NewWriter(w)
	_ = wrt.Write(profileHeader)
	_ = wrt.Write(profileUnits)
	for _, row := range rows {
		_ = wrt.Write([]string{
			formatFloat(row.R), formatFloat(row.SB), formatFloat(row.SBErr),
			formatFloat(row.Ellip), formatFloat(row.PA),
		})
	}
	wrt.Flush()

	return errors.Wrap(wrt.Error(), "unable to encode profile")
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}

	return strconv.FormatFloat(v, 'f', 5, 64)
}

// ReadProfile reads a profile written by WriteProf.
func ReadProfile(path string) ([]ProfileRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open profile %s", path)
	}
	defer file.Close()

	rows, err := DecodeProfile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read profile %s", path)
	}

	return rows, nil
}

// DecodeProfile parses a CSV profile. Columns are located by the header line.
func DecodeProfile(r io.Reader) ([]ProfileRow, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidProfile, err.Error())
	}
	if len(records) < 2 {
		return nil, errors.Wrap(ErrInvalidProfile, "missing header")
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[name] = i
	}
	for _, name := range []string{"R", "ellip", "pa"} {
		if _, ok := cols[name]; !ok {
			return nil, errors.Wrapf(ErrInvalidProfile, "missing column %q", name)
		}
	}

	get := func(record []string, name string) (float64, error) {
		i, ok := cols[name]
		if !ok {
			return math.NaN(), nil
		}

		return strconv.ParseFloat(record[i], 64)
	}

	rows := make([]ProfileRow, 0, len(records)-2)
	// the second line holds the units
	for n, record := range records[2:] {
		var row ProfileRow
		var errs [5]error
		row.R, errs[0] = get(record, "R")
		row.SB, errs[1] = get(record, "SB")
		row.SBErr, errs[2] = get(record, "SB_e")
		row.Ellip, errs[3] = get(record, "ellip")
		row.PA, errs[4] = get(record, "pa")
		for _, err := range errs {
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidProfile, "line %d: %v", n+3, err)
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
