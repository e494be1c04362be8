package imagepipe

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// DefaultImageParam is the parameter name a step receives its image under
// when none is given.
const DefaultImageParam = "img"

// Outputs is the result of a step. Most operations return a single image;
// some return extra values (a threshold operation returns the threshold
// and the image), and CaptureIndex picks the element to keep.
type Outputs []any

// Single wraps one image as step outputs.
func Single(img image.Image) Outputs { return Outputs{img} }

// DirectFunc applies an operation to an image.
type DirectFunc func(img image.Image, p Params) (Outputs, error)

// MethodFunc is a named operation on an Object.
type MethodFunc func(p Params) (Outputs, error)

// Object is an image wrapper exposing named methods.
type Object interface {
	Method(name string) (MethodFunc, bool)
}

// Builder wraps an image into an Object.
type Builder func(img image.Image) (Object, error)

// Imager is implemented by step results that are not image.Image but can
// be converted back into one.
type Imager interface {
	Image() (image.Image, error)
}

// Step is one named transformation. A step is either direct (Direct set)
// or object-based (Builder and Method set).
type Step struct {
	Name         string
	Direct       DirectFunc
	Builder      Builder
	Method       string
	ImageParam   string
	Params       Params
	CaptureIndex int
}

// NewDirectStep creates a step that calls fn on the image.
func NewDirectStep(name string, fn DirectFunc, params Params, captureIndex int) Step {
	return Step{
		Name:         name,
		Direct:       fn,
		ImageParam:   DefaultImageParam,
		Params:       params,
		CaptureIndex: captureIndex,
	}
}

// NewObjectStep creates a step that wraps the image with b and calls the
// named method.
func NewObjectStep(name string, b Builder, method string, params Params, captureIndex int) Step {
	return Step{
		Name:         name,
		Builder:      b,
		Method:       method,
		ImageParam:   DefaultImageParam,
		Params:       params,
		CaptureIndex: captureIndex,
	}
}

// IsObject reports whether the step goes through a Builder.
func (s Step) IsObject() bool { return s.Builder != nil }

func (s Step) String() string {
	param := s.ImageParam
	if param == "" {
		param = DefaultImageParam
	}
	if s.IsObject() {
		return fmt.Sprintf("%s(%s).%s(%v)[%d]", s.Name, param, s.Method, map[string]any(s.Params), s.CaptureIndex)
	}
	return fmt.Sprintf("%s(%s, %v)[%d]", s.Name, param, map[string]any(s.Params), s.CaptureIndex)
}

func (s Step) validate() error {
	switch {
	case s.Name == "":
		return &InvalidStepError{Step: s.Name, Reason: "name is empty"}
	case s.Builder != nil && s.Direct != nil:
		return &InvalidStepError{Step: s.Name, Reason: "both a direct operation and a builder are set"}
	case s.Builder != nil && s.Method == "":
		return &InvalidStepError{Step: s.Name, Reason: "builder given without a method name"}
	case s.Builder == nil && s.Method != "":
		return &InvalidStepError{Step: s.Name, Reason: "method name given without a builder"}
	case s.Builder == nil && s.Direct == nil:
		return &InvalidStepError{Step: s.Name, Reason: "no operation"}
	case s.CaptureIndex < 0:
		return &InvalidStepError{Step: s.Name, Reason: fmt.Sprintf("negative capture index %d", s.CaptureIndex)}
	}
	return nil
}

func (s Step) clone() Step {
	out := s
	out.Params = s.Params.Clone()
	if out.ImageParam == "" {
		out.ImageParam = DefaultImageParam
	}
	return out
}

// apply runs the step and returns the captured output as a raw pixel array.
func (s Step) apply(img image.Image) (*image.NRGBA, error) {
	params := s.Params.Clone()

	var (
		outs Outputs
		err  error
	)
	if s.IsObject() {
		obj, berr := s.Builder(img)
		if berr != nil {
			return nil, &StepError{Step: s.Name, Err: berr}
		}
		fn, ok := obj.Method(s.Method)
		if !ok {
			return nil, &StepError{Step: s.Name, Err: fmt.Errorf("%w: object has no method %q", ErrInvalidStep, s.Method)}
		}
		outs, err = fn(params)
	} else {
		outs, err = s.Direct(img, params)
	}
	if err != nil {
		return nil, &StepError{Step: s.Name, Err: err}
	}

	if s.CaptureIndex >= len(outs) {
		return nil, &StepError{
			Step: s.Name,
			Err:  &StepIndexError{What: "capture index", Index: s.CaptureIndex, Min: 0, Max: len(outs) - 1},
		}
	}
	return toNRGBA(s.Name, outs[s.CaptureIndex])
}

func toNRGBA(step string, v any) (*image.NRGBA, error) {
	switch out := v.(type) {
	case *image.NRGBA:
		return out, nil
	case image.Image:
		return imaging.Clone(out), nil
	case Imager:
		img, err := out.Image()
		if err != nil {
			return nil, &StepError{Step: step, Err: err}
		}
		return imaging.Clone(img), nil
	default:
		return nil, &StepError{Step: step, Err: fmt.Errorf("%w: got %T", ErrStepOutput, v)}
	}
}
