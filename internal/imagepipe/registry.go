package imagepipe

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Operation names understood by the default registry.
const (
	OpGrayscale = "grayscale"
	OpInvert    = "invert"
	OpResize    = "resize"
	OpScale     = "scale_height"
	OpSharpen   = "sharpen"
	OpBlur      = "blur"
	OpContrast  = "adjust_contrast"
	OpGamma     = "adjust_gamma"
	OpThreshold = "threshold"
	OpFlatField = "flat_field"
	OpEnhContr  = "contrast"
	OpEnhSharp  = "sharpness"
	OpEnhBright = "brightness"
)

// StepSpec is the configuration form of a step.
type StepSpec struct {
	Name         string         `yaml:"name" json:"name"`
	Op           string         `yaml:"op" json:"op"`
	Method       string         `yaml:"method,omitempty" json:"method,omitempty"`
	Params       map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	CaptureIndex *int           `yaml:"capture_index,omitempty" json:"capture_index,omitempty"`
}

type directEntry struct {
	fn      DirectFunc
	capture int
}

// Registry maps operation names to direct functions and object builders.
type Registry struct {
	mu       sync.RWMutex
	direct   map[string]directEntry
	builders map[string]Builder
}

// NewRegistry returns a registry holding the built-in operations.
func NewRegistry() *Registry {
	r := &Registry{
		direct:   make(map[string]directEntry),
		builders: make(map[string]Builder),
	}
	r.RegisterDirect(OpGrayscale, Grayscale, 0)
	r.RegisterDirect(OpInvert, Invert, 0)
	r.RegisterDirect(OpResize, Resize, 0)
	r.RegisterDirect(OpScale, ScaleHeight, 0)
	r.RegisterDirect(OpSharpen, Sharpen, 0)
	r.RegisterDirect(OpBlur, Blur, 0)
	r.RegisterDirect(OpContrast, AdjustContrast, 0)
	r.RegisterDirect(OpGamma, AdjustGamma, 0)
	r.RegisterDirect(OpThreshold, Threshold, 1)
	r.RegisterDirect(OpFlatField, FlatField, 0)
	r.RegisterBuilder(OpEnhContr, ContrastEnhancer)
	r.RegisterBuilder(OpEnhSharp, SharpnessEnhancer)
	r.RegisterBuilder(OpEnhBright, BrightnessEnhancer)
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the shared registry. Optional backends register
// their operations here.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() { defaultRegistry = NewRegistry() })
	return defaultRegistry
}

// RegisterDirect adds a direct operation with the capture index used when a
// spec does not give one.
func (r *Registry) RegisterDirect(op string, fn DirectFunc, defaultCapture int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[op] = directEntry{fn: fn, capture: defaultCapture}
}

// RegisterBuilder adds an object builder.
func (r *Registry) RegisterBuilder(op string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[op] = b
}

// Operations lists the registered operation names.
func (r *Registry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops := make([]string, 0, len(r.direct)+len(r.builders))
	for op := range r.direct {
		ops = append(ops, op)
	}
	for op := range r.builders {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Step resolves a spec into a step.
func (r *Registry) Step(spec StepSpec) (Step, error) {
	r.mu.RLock()
	entry, isDirect := r.direct[spec.Op]
	builder, isObject := r.builders[spec.Op]
	r.mu.RUnlock()

	name := spec.Name
	if name == "" {
		name = spec.Op
	}
	capture := 0
	if isDirect {
		capture = entry.capture
	}
	if spec.CaptureIndex != nil {
		capture = *spec.CaptureIndex
	}

	switch {
	case isDirect:
		if spec.Method != "" {
			return Step{}, &InvalidStepError{Step: name, Reason: fmt.Sprintf("operation %q takes no method", spec.Op)}
		}
		return NewDirectStep(name, entry.fn, spec.Params, capture), nil
	case isObject:
		method := spec.Method
		if method == "" {
			method = EnhanceMethod
		}
		return NewObjectStep(name, builder, method, spec.Params, capture), nil
	default:
		return Step{}, &InvalidStepError{Step: name, Reason: fmt.Sprintf("unknown operation %q", spec.Op)}
	}
}

// Build creates a pipeline from specs, in order.
func (r *Registry) Build(specs []StepSpec) (*Pipeline, error) {
	p := &Pipeline{}
	for _, spec := range specs {
		s, err := r.Step(spec)
		if err != nil {
			return nil, err
		}
		if err := p.AddStep(s); err != nil {
			return nil, err
		}
	}
	return p, nil
}

type specFile struct {
	Steps []StepSpec `yaml:"steps"`
}

// ParseSpecs decodes a YAML document with a top-level steps list.
func ParseSpecs(data []byte) ([]StepSpec, error) {
	var f specFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse pipeline steps: %w", err)
	}
	return f.Steps, nil
}

// LoadSpecFile reads step specs from a YAML file.
func LoadSpecFile(path string) ([]StepSpec, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided pipeline file
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	return ParseSpecs(data)
}
