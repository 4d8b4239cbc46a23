package pipeline

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

type hooks []model.PipelineOption

func (h hooks) start(sequences map[string][]string) error {
	for _, opt := range h {
		err := opt.New(sequences)
		if err != nil {
			return errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return nil
}

func (h hooks) stepOutput(logger *slog.Logger, job string, step *model.StepInfo, elapsed time.Duration) {
	for _, opt := range h {
		err := opt.OnStepOutput(job, step, elapsed)
		if err != nil {
			logger.Warn("pipeline option failed on step output", "step", step.Name, "error", err)
		}
	}
}

func (h hooks) branch(logger *slog.Logger, job string, step *model.StepInfo, target string) {
	for _, opt := range h {
		err := opt.OnBranch(job, step, target)
		if err != nil {
			logger.Warn("pipeline option failed on branch", "step", step.Name, "target", target, "error", err)
		}
	}
}

func (h hooks) afterJob(logger *slog.Logger, job string, timing model.Timing, jobErr error) {
	for _, opt := range h {
		err := opt.AfterJob(job, timing, jobErr)
		if err != nil {
			logger.Warn("pipeline option failed after job", "error", err)
		}
	}
}

func (h hooks) finish(means map[string]time.Duration) error {
	for _, opt := range h {
		err := opt.Finish(means)
		if err != nil {
			return errors.Wrap(err, "unable to finish pipeline option")
		}
	}

	return nil
}
