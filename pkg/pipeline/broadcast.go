package pipeline

import (
	"github.com/pkg/errors"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// Broadcast expands batch options into n per-image options.
// When every value is a scalar the same map is returned n times. Otherwise element i of every
// list-valued option and every scalar verbatim make up the options of image i.
func Broadcast(opts model.Options, n int) ([]model.Options, error) {
	hasList := false
	for key, value := range opts {
		length := model.ListLen(value)
		if length < 0 {
			continue
		}
		hasList = true
		if length != n {
			return nil, errors.Wrapf(ErrOptionsLength, "option %q has %d values for %d images", key, length, n)
		}
	}

	out := make([]model.Options, n)
	if !hasList {
		for i := range out {
			out[i] = opts
		}

		return out, nil
	}

	for i := range out {
		jobOpts := make(model.Options, len(opts))
		for key, value := range opts {
			if model.IsList(value) {
				jobOpts[key] = model.ListIndex(value, i)
			} else {
				jobOpts[key] = value
			}
		}
		out[i] = jobOpts
	}

	return out, nil
}
