package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-autoprof/pkg/pipeline/measure"
	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

const (
	largeBatch      = 100
	largeBatchChunk = 5
)

// BatchResult holds one outcome per input image, in input order.
type BatchResult struct {
	RunID    string
	Outcomes []Outcome
	// Means is the mean time of each step over the successful jobs that ran it.
	// It is nil when every job failed.
	Means   map[string]time.Duration
	Elapsed time.Duration
}

// Failed returns the indices of the failed jobs.
func (r *BatchResult) Failed() []int {
	var failed []int
	for i, outcome := range r.Outcomes {
		if outcome.Failed() {
			failed = append(failed, i)
		}
	}

	return failed
}

// chunkSize returns the number of contiguous jobs handed to a worker at once.
func chunkSize(n int) int {
	if n > largeBatch {
		return largeBatchChunk
	}

	return 1
}

// ProcessList runs ProcessImage over every image of the image_file option.
// List-valued options are broadcast one value per image. Jobs run on a pool of n_procs workers,
// or sequentially when n_procs is at most 1. A failed job never stops the others; ErrAllImagesFailed
// is returned along with the result when no job succeeded.
func (p *Pipeline) ProcessList(ctx context.Context, opts model.Options) (*BatchResult, error) {
	images := opts[OptionImageFile]
	if !model.IsList(images) {
		return nil, ErrImageListRequired
	}
	total := model.ListLen(images)
	if total == 0 {
		return nil, ErrNoImages
	}

	jobs, err := Broadcast(opts, total)
	if err != nil {
		return nil, err
	}

	workers, ok := opts.Int(OptionWorkers)
	if !ok {
		workers = 1
	}

	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	pl := p.snapshot()
	msr := measure.NewDefaultMeasure()
	hks := append(hooks{measure.PipelineMeasure(msr)}, p.opts...)

	err = hks.start(pl.sequences)
	if err != nil {
		return nil, err
	}

	logger.Info("processing images", "images", total, "workers", workers)
	start := time.Now()
	outcomes := make([]Outcome, total)

	if workers <= 1 {
		for i, jobOpts := range jobs {
			outcomes[i] = p.runJob(ctx, pl, hks, jobOpts, logger)
		}
	} else {
		size := chunkSize(total)
		errGrp := errgroup.Group{}
		errGrp.SetLimit(workers)
		for lo := 0; lo < total; lo += size {
			hi := min(lo+size, total)
			errGrp.Go(func() error {
				for i := lo; i < hi; i++ {
					outcomes[i] = p.runJob(ctx, pl, hks, jobs[i], logger)
				}

				return nil
			})
		}
		_ = errGrp.Wait()
	}

	res := &BatchResult{
		RunID:    runID,
		Outcomes: outcomes,
		Elapsed:  time.Since(start),
	}
	logger.Info("all images finished processing",
		"at", fmt.Sprintf("%.1f sec", res.Elapsed.Seconds()),
		"failed", len(res.Failed()))

	if len(res.Failed()) == total {
		logger.Error("all images failed to process")

		err = hks.finish(nil)
		if err != nil {
			logger.Error("unable to finish pipeline options", "error", err)
		}

		return res, ErrAllImagesFailed
	}

	res.Means = msr.Means()
	for _, name := range slices.Sorted(maps.Keys(res.Means)) {
		logger.Info(fmt.Sprintf("%s took %.3f seconds on average", name, res.Means[name].Seconds()),
			"step", name, "count", msr.GetMetric(name).Count())
	}

	err = hks.finish(res.Means)
	if err != nil {
		return res, errors.Wrap(err, "unable to finish run")
	}

	return res, nil
}
