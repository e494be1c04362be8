// Package imagepipe runs an ordered, named chain of image transformations
// used to clean up page images before recognition.
package imagepipe

import (
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// Pipeline is an ordered set of uniquely named steps. Adding a step whose
// name already exists replaces it in place. Running a pipeline never
// modifies it, so a single Pipeline can serve concurrent callers.
type Pipeline struct {
	mu    sync.RWMutex
	steps []Step
}

// New creates a pipeline from steps, in order.
func New(steps ...Step) (*Pipeline, error) {
	p := &Pipeline{}
	for _, s := range steps {
		if err := p.AddStep(s); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AddStep appends s, or replaces the step with the same name.
func (p *Pipeline) AddStep(s Step) error {
	if err := s.validate(); err != nil {
		return err
	}
	s = s.clone()

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.steps {
		if p.steps[i].Name == s.Name {
			p.steps[i] = s
			return nil
		}
	}
	p.steps = append(p.steps, s)
	return nil
}

// Run applies every step to img.
func (p *Pipeline) Run(img image.Image) (image.Image, error) {
	return p.RunUntil(img, p.Size())
}

// RunUntil applies steps [0, until) to img. until must be in [0, Size()].
// With until == 0 a copy of the input is returned.
func (p *Pipeline) RunUntil(img image.Image, until int) (image.Image, error) {
	p.mu.RLock()
	size := len(p.steps)
	if until < 0 || until > size {
		p.mu.RUnlock()
		return nil, &StepIndexError{What: "until", Index: until, Min: 0, Max: size}
	}
	steps := make([]Step, until)
	copy(steps, p.steps[:until])
	p.mu.RUnlock()

	if len(steps) == 0 {
		return imaging.Clone(img), nil
	}

	cur := img
	for _, s := range steps {
		out, err := s.apply(cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	return cur, nil
}

// CopySteps replaces this pipeline's steps with deep copies of
// other's steps [start, end). end must be in [0, other.Size()] and start in
// [0, end].
func (p *Pipeline) CopySteps(other *Pipeline, start, end int) error {
	src := other.Steps()
	if end < 0 || end > len(src) {
		return &StepIndexError{What: "end", Index: end, Min: 0, Max: len(src)}
	}
	if start < 0 || start > end {
		return &StepIndexError{What: "start", Index: start, Min: 0, Max: end}
	}

	copied := make([]Step, 0, end-start)
	for _, s := range src[start:end] {
		copied = append(copied, s.clone())
	}

	p.mu.Lock()
	p.steps = copied
	p.mu.Unlock()
	return nil
}

// Size returns the number of steps.
func (p *Pipeline) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.steps)
}

// Empty reports whether the pipeline has no steps.
func (p *Pipeline) Empty() bool { return p.Size() == 0 }

// Clear removes all steps.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	p.steps = nil
	p.mu.Unlock()
}

// Names returns the step names in order.
func (p *Pipeline) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

// Steps returns deep copies of the steps in order.
func (p *Pipeline) Steps() []Step {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Step, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.clone()
	}
	return out
}

// Clone returns an independent copy of the pipeline.
func (p *Pipeline) Clone() *Pipeline {
	return &Pipeline{steps: p.Steps()}
}
