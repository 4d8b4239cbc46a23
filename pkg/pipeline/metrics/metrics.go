// Package metrics exposes the activity of a pipeline as prometheus metrics.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

const namespace = "autoprof"

// Outcome label values of the jobs counter.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector records step durations, job outcomes and branch redirects.
type Collector struct {
	steps    *prometheus.HistogramVec
	jobs     *prometheus.CounterVec
	branches *prometheus.CounterVec
	runs     prometheus.Counter
}

// New creates the collector and registers its metrics on reg.
// Metrics already registered by another collector are shared.
func New(reg prometheus.Registerer) (*Collector, error) {
	col := &Collector{
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of the regular steps.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"step"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Number of finished jobs by outcome.",
		}, []string{"outcome"}),
		branches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branches_total",
			Help:      "Number of redirects taken by branch steps.",
		}, []string{"step", "target"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of finished runs.",
		}),
	}

	var err error
	col.steps, err = register(reg, col.steps)
	if err != nil {
		return nil, err
	}
	col.jobs, err = register(reg, col.jobs)
	if err != nil {
		return nil, err
	}
	col.branches, err = register(reg, col.branches)
	if err != nil {
		return nil, err
	}
	col.runs, err = register(reg, col.runs)
	if err != nil {
		return nil, err
	}

	return col, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, col C) (C, error) {
	err := reg.Register(col)
	if err == nil {
		return col, nil
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	return col, errors.Wrap(err, "unable to register metric")
}

func (c *Collector) New(map[string][]string) error {
	return nil
}

func (c *Collector) OnStepOutput(_ string, step *model.StepInfo, elapsed time.Duration) error {
	c.steps.WithLabelValues(step.Name).Observe(elapsed.Seconds())

	return nil
}

func (c *Collector) OnBranch(_ string, step *model.StepInfo, target string) error {
	c.branches.WithLabelValues(step.Name, target).Inc()

	return nil
}

func (c *Collector) AfterJob(_ string, _ model.Timing, err error) error {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	c.jobs.WithLabelValues(outcome).Inc()

	return nil
}

func (c *Collector) Finish(map[string]time.Duration) error {
	c.runs.Inc()

	return nil
}

var _ model.PipelineOption = (*Collector)(nil)
