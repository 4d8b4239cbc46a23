package model

import (
	"context"
	"time"
)

type stepKind string

const (
	RegularStepKind stepKind = "regular"
	BranchStepKind  stepKind = "branch"
)

// StepInfo describes the step currently dispatched by the engine.
type StepInfo struct {
	Kind     stepKind
	Name     string
	Sequence string
	Index    int
}

// Step is a unit of work resolved by name from the registry.
// It is either a Regular or a Branch step.
type Step interface {
	Kind() stepKind
}

// Regular transforms the image and returns partial results to merge into the accumulated ones.
type Regular func(ctx context.Context, img *Image, results Results, opts Options) (*Image, Results, error)

// Kind implements Step.
func (Regular) Kind() stepKind { return RegularStepKind }

// Branch redirects the execution to the returned sequence. An empty name means no redirect.
type Branch func(ctx context.Context, img *Image, results Results, opts Options) (string, error)

// Kind implements Step.
func (Branch) Kind() stepKind { return BranchStepKind }

// Timing holds the elapsed time of every regular step that completed for one job.
type Timing map[string]time.Duration

var (
	_ Step = Regular(nil)
	_ Step = Branch(nil)
)
