package imagepipe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStep is returned when a step's shape is inconsistent.
	ErrInvalidStep = errors.New("invalid pipeline step")
	// ErrStepIndex is returned for out-of-range step or capture indices.
	ErrStepIndex = errors.New("step index out of range")
	// ErrStepOutput is returned when a captured output is not an image.
	ErrStepOutput = errors.New("step output is not an image")
)

// InvalidStepError describes why a step was rejected.
type InvalidStepError struct {
	Step   string
	Reason string
}

func (e *InvalidStepError) Error() string {
	return fmt.Sprintf("invalid pipeline step %q: %s", e.Step, e.Reason)
}

func (e *InvalidStepError) Unwrap() error { return ErrInvalidStep }

// StepIndexError reports an index outside [Min, Max].
type StepIndexError struct {
	What  string
	Index int
	Min   int
	Max   int
}

func (e *StepIndexError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d]", e.What, e.Index, e.Min, e.Max)
}

func (e *StepIndexError) Unwrap() error { return ErrStepIndex }

// StepError wraps a failure raised while a step was running.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
