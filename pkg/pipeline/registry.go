package pipeline

import (
	"maps"
	"slices"

	"github.com/pkg/errors"

	"github.com/askiada/go-autoprof/pkg/pipeline/model"
)

// HeadSequence is the entry sequence of every job.
const HeadSequence = "head"

// UpdateMethods merges methods into the registry. Existing names are overwritten.
func (p *Pipeline) UpdateMethods(methods map[string]model.Step) {
	if len(methods) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info("updating pipeline methods", "methods", slices.Sorted(maps.Keys(methods)))
	maps.Copy(p.methods, methods)
}

// UpdateHead replaces the head sequence and leaves the other sequences untouched.
func (p *Pipeline) UpdateHead(steps []string) {
	if len(steps) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info("new pipeline steps", "head", steps)
	p.sequences[HeadSequence] = slices.Clone(steps)
}

// UpdateSequences replaces the whole sequence graph. It fails with ErrSequenceConfig,
// leaving the current graph unchanged, when sequences has no head entry.
func (p *Pipeline) UpdateSequences(sequences map[string][]string) error {
	if len(sequences) == 0 {
		return nil
	}
	if _, ok := sequences[HeadSequence]; !ok {
		return errors.Wrapf(ErrSequenceConfig, "got %v", slices.Sorted(maps.Keys(sequences)))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info("new pipeline steps", "sequences", sequences)
	p.sequences = cloneSequences(sequences)

	return nil
}

// Sequences returns a copy of the sequence graph.
func (p *Pipeline) Sequences() map[string][]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return cloneSequences(p.sequences)
}

// Methods returns the sorted names of the registered steps.
func (p *Pipeline) Methods() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Sorted(maps.Keys(p.methods))
}

// Validate reports the step names referenced by a sequence but missing from the registry.
// Jobs still fault on such steps when they reach them.
func (p *Pipeline) Validate() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var missing []string
	for _, seq := range slices.Sorted(maps.Keys(p.sequences)) {
		for _, name := range p.sequences[seq] {
			if _, ok := p.methods[name]; !ok && !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrUnknownStep, "%v", missing)
	}

	return nil
}

// plan is the read-only view of the registry and the sequence graph used by a run.
type plan struct {
	methods   map[string]model.Step
	sequences map[string][]string
}

func (p *Pipeline) snapshot() *plan {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return &plan{
		methods:   maps.Clone(p.methods),
		sequences: cloneSequences(p.sequences),
	}
}

func cloneSequences(sequences map[string][]string) map[string][]string {
	out := make(map[string][]string, len(sequences))
	for name, steps := range sequences {
		out[name] = slices.Clone(steps)
	}

	return out
}
