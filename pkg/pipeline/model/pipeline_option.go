package model

import "time"

// PipelineOption defines the interface for hooks attached to a pipeline.
// Hooks are called concurrently from batch workers and must be safe for concurrent use.
type PipelineOption interface {
	// New runs once before a run starts, with a snapshot of the sequence graph.
	New(sequences map[string][]string) error
	// OnStepOutput runs every time a regular step completes.
	OnStepOutput(job string, step *StepInfo, elapsed time.Duration) error
	// OnBranch runs every time a branch step redirects to another sequence.
	OnBranch(job string, step *StepInfo, target string) error
	// AfterJob runs once a job finishes. err is nil on success.
	AfterJob(job string, timing Timing, err error) error
	// Finish runs after the run is finished, with the mean time of every step.
	Finish(means map[string]time.Duration) error
}
