package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// Outcome is the result of one job. A failed job carries no timing.
type Outcome struct {
	Job    string
	Timing model.Timing
	Err    error
}

// Failed reports whether the job failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// ProcessImage runs the head sequence over the image named by the image_file option.
// Failures are reported in the outcome and logged, never returned as an error.
func (p *Pipeline) ProcessImage(ctx context.Context, opts model.Options) Outcome {
	pl := p.snapshot()
	hks := hooks(p.opts)

	err := hks.start(pl.sequences)
	if err != nil {
		p.logger.Error("unable to start pipeline options", "error", err)

		return Outcome{Job: jobName(opts), Err: err}
	}

	outcome := p.runJob(ctx, pl, hks, opts, p.logger)

	err = hks.finish(outcome.Timing)
	if err != nil {
		p.logger.Error("unable to finish pipeline options", "error", err)
	}

	return outcome
}

// runJob executes one job against a snapshot of the registry and sequences.
func (p *Pipeline) runJob(ctx context.Context, pl *plan, hks hooks, opts model.Options, logger *slog.Logger) Outcome {
	// opts may be shared by every job of a batch
	jobOpts := maps.Clone(opts)
	if jobOpts == nil {
		jobOpts = model.Options{}
	}
	name := jobName(jobOpts)
	jobOpts[OptionName] = name
	logger = logger.With("job", name)

	ctx, span := p.tracer.Start(ctx, "autoprof.job", trace.WithAttributes(
		attribute.String("autoprof.job", name),
		attribute.String("autoprof.image_file", jobOpts.String(OptionImageFile)),
	))
	defer span.End()
	ctx = model.WithRand(ctx, seedRand())

	timing, err := p.execute(ctx, pl, hks, name, jobOpts, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		timing = nil
	}
	hks.afterJob(logger, name, timing, err)

	return Outcome{Job: name, Timing: timing, Err: err}
}

func (p *Pipeline) execute(ctx context.Context, pl *plan, hks hooks, name string, opts model.Options, logger *slog.Logger) (model.Timing, error) {
	if name == "" {
		logger.Error("no job name and no image file to derive it from")

		return nil, ErrNoJobName
	}

	imageFile := opts.String(OptionImageFile)
	img, err := p.loader(imageFile, opts)
	if err != nil {
		logger.Error("could not read image", "image", imageFile, "error", err)

		return nil, errors.Wrapf(ErrImageLoad, "%s: %v", imageFile, err)
	}
	if emptyFrame(img) {
		logger.Error("large chunk of data missing, impossible to process image", "image", imageFile)

		return nil, ErrEmptyFrame
	}

	start := time.Now()
	timing := model.Timing{}
	results := model.Results{}
	seq, idx := HeadSequence, 0

	for {
		err = ctx.Err()
		if err != nil {
			logger.Error("job cancelled", "sequence", seq, "error", err)

			return nil, errors.Wrap(err, "job cancelled")
		}

		steps, ok := pl.sequences[seq]
		if !ok {
			fault := &StepFault{Sequence: seq, Err: ErrUnknownSequence}
			logger.Error("unknown sequence", "sequence", seq, "error", fault)

			return nil, fault
		}
		if idx >= len(steps) {
			break
		}

		info := &model.StepInfo{Name: steps[idx], Sequence: seq, Index: idx}
		logger.Info("running step", "sequence", seq, "step", info.Name,
			"at", fmt.Sprintf("%.1f sec", time.Since(start).Seconds()))

		target, err := p.tick(ctx, pl, hks, name, info, &img, results, timing, opts, logger)
		if err != nil {
			fault := &StepFault{Sequence: seq, Step: info.Name, Err: err}
			logger.Error("step failed", "sequence", seq, "step", info.Name, "error", err)

			return nil, fault
		}

		if target != "" {
			seq, idx = target, 0

			continue
		}
		idx++
	}

	logger.Info("processing complete", "elapsed", fmt.Sprintf("%.1f sec", time.Since(start).Seconds()))

	return timing, nil
}

// tick dispatches one step and returns the sequence to jump to, if any.
func (p *Pipeline) tick(
	ctx context.Context, pl *plan, hks hooks, job string, info *model.StepInfo,
	img **model.Image, results model.Results, timing model.Timing, opts model.Options, logger *slog.Logger,
) (string, error) {
	step, ok := pl.methods[info.Name]
	if !ok {
		return "", ErrUnknownStep
	}
	info.Kind = step.Kind()

	ctx, span := p.tracer.Start(ctx, "autoprof.step", trace.WithAttributes(
		attribute.String("autoprof.step", info.Name),
		attribute.String("autoprof.sequence", info.Sequence),
		attribute.String("autoprof.kind", string(info.Kind)),
	))
	defer span.End()

	switch fn := step.(type) {
	case model.Branch:
		target, err := invokeBranch(ctx, fn, *img, maps.Clone(results), opts, logger)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			return "", err
		}
		if target != "" {
			span.SetAttributes(attribute.String("autoprof.branch_target", target))
			hks.branch(logger, job, info, target)
		}

		return target, nil
	case model.Regular:
		stepStart := time.Now()
		out, partial, err := invokeRegular(ctx, fn, *img, results, opts, logger)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			return "", err
		}
		// colliding keys are overwritten by the later step
		maps.Copy(results, partial)
		elapsed := time.Since(stepStart)
		timing[info.Name] = elapsed
		*img = out
		hks.stepOutput(logger, job, info, elapsed)

		return "", nil
	default:
		return "", errors.Wrapf(ErrUnknownStepKind, "%T", step)
	}
}

func invokeRegular(
	ctx context.Context, fn model.Regular, img *model.Image, results model.Results, opts model.Options, logger *slog.Logger,
) (out *model.Image, partial model.Results, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("step panicked", "panic", r, "stack", string(debug.Stack()))
			err = errors.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx, img, results, opts)
}

func invokeBranch(
	ctx context.Context, fn model.Branch, img *model.Image, results model.Results, opts model.Options, logger *slog.Logger,
) (target string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("step panicked", "panic", r, "stack", string(debug.Stack()))
			err = errors.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx, img, results, opts)
}
