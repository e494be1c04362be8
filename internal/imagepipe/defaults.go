package imagepipe

// DefaultSteps is the fixed preprocessing chain applied when a job asks for
// preprocessing without naming its own steps.
func DefaultSteps() []StepSpec {
	return []StepSpec{{Name: "Grayscale", Op: OpGrayscale}}
}

// DefaultPreprocessing builds the default chain.
func DefaultPreprocessing() *Pipeline {
	p, err := DefaultRegistry().Build(DefaultSteps())
	if err != nil {
		// built-in operations only; cannot fail
		panic(err)
	}
	return p
}
