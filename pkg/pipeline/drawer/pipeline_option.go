package drawer

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer

	mu        sync.Mutex
	sequences map[string][]string
}

// New draws every sequence as a chain of steps.
func (pd *pipelineDrawer) New(sequences map[string][]string) error {
	pd.mu.Lock()
	pd.sequences = sequences
	pd.mu.Unlock()

	for sequence, steps := range sequences {
		for i, step := range steps {
			err := pd.AddStep(sequence, step)
			if err != nil {
				return errors.Wrap(err, "unable to add step to drawer")
			}
			if i == 0 {
				continue
			}
			err = pd.AddLink(VertexID(sequence, steps[i-1]), VertexID(sequence, step), nil)
			if err != nil {
				return errors.Wrap(err, "unable to link steps")
			}
		}
	}

	return nil
}

func (pd *pipelineDrawer) OnStepOutput(string, *model.StepInfo, time.Duration) error {
	return nil
}

// OnBranch links the branch step to the first step of the target sequence.
func (pd *pipelineDrawer) OnBranch(_ string, step *model.StepInfo, target string) error {
	pd.mu.Lock()
	steps := pd.sequences[target]
	pd.mu.Unlock()

	if len(steps) == 0 {
		return nil
	}

	err := pd.AddLink(VertexID(step.Sequence, step.Name), VertexID(target, steps[0]), map[string]string{
		"style": "dashed",
		"label": target,
	})
	if err != nil {
		return errors.Wrap(err, "unable to link branch")
	}

	return nil
}

func (pd *pipelineDrawer) AfterJob(string, model.Timing, error) error {
	return nil
}

// Finish annotates the steps with their mean time, when known, and draws the graph.
func (pd *pipelineDrawer) Finish(means map[string]time.Duration) error {
	err := pd.AddMeans(means)
	if err != nil {
		return errors.Wrap(err, "unable to add means")
	}

	err = pd.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

// PipelineDrawer draws the sequence graph of a run, with the branches actually taken.
func PipelineDrawer(drawer Drawer) model.PipelineOption {
	return &pipelineDrawer{Drawer: drawer}
}
