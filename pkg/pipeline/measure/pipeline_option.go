package measure

import (
	"time"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

type pipelineMeasure struct {
	Measure
}

func (pm *pipelineMeasure) New(map[string][]string) error {
	return nil
}

func (pm *pipelineMeasure) OnStepOutput(string, *model.StepInfo, time.Duration) error {
	return nil
}

func (pm *pipelineMeasure) OnBranch(string, *model.StepInfo, string) error {
	return nil
}

// AfterJob only records successful jobs: a failed job contributes to no mean.
func (pm *pipelineMeasure) AfterJob(_ string, timing model.Timing, err error) error {
	if err != nil {
		return nil
	}
	for name, elapsed := range timing {
		pm.AddMetric(name).AddDuration(elapsed)
	}

	return nil
}

func (pm *pipelineMeasure) Finish(map[string]time.Duration) error {
	return nil
}

// PipelineMeasure feeds the timing of every successful job into measure.
func PipelineMeasure(measure Measure) model.PipelineOption {
	return &pipelineMeasure{measure}
}
