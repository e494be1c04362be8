package imagepipe

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientImage returns a horizontal gray ramp.
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8(x * 255 / max(w-1, 1))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func tracingStep(name string, trace *[]string, mu *sync.Mutex) Step {
	return NewDirectStep(name, func(img image.Image, _ Params) (Outputs, error) {
		mu.Lock()
		*trace = append(*trace, name)
		mu.Unlock()
		return Single(img), nil
	}, nil, 0)
}

func TestAddStep_Validation(t *testing.T) {
	tests := []struct {
		name string
		step Step
	}{
		{"empty name", Step{Direct: Grayscale}},
		{"no operation", Step{Name: "x"}},
		{"builder without method", Step{Name: "x", Builder: ContrastEnhancer}},
		{"method without builder", Step{Name: "x", Method: "enhance"}},
		{"method with direct only", Step{Name: "x", Direct: Grayscale, Method: "enhance"}},
		{"both direct and builder", Step{Name: "x", Direct: Grayscale, Builder: ContrastEnhancer, Method: "enhance"}},
		{"negative capture", Step{Name: "x", Direct: Grayscale, CaptureIndex: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Pipeline{}
			err := p.AddStep(tt.step)
			require.ErrorIs(t, err, ErrInvalidStep)
			var ise *InvalidStepError
			require.ErrorAs(t, err, &ise)
			assert.Equal(t, 0, p.Size())
		})
	}
}

func TestAddStep_ReplacesInPlace(t *testing.T) {
	p, err := New(
		NewDirectStep("a", Sharpen, Params{"sigma": 1.0}, 0),
		NewDirectStep("b", Grayscale, nil, 0),
		NewDirectStep("c", Invert, nil, 0),
	)
	require.NoError(t, err)

	require.NoError(t, p.AddStep(NewDirectStep("a", Blur, Params{"sigma": 3.0}, 0)))

	assert.Equal(t, []string{"a", "b", "c"}, p.Names())
	steps := p.Steps()
	assert.InDelta(t, 3.0, steps[0].Params.Float("sigma", 0), 1e-9)
}

func TestAddStep_CopiesParams(t *testing.T) {
	params := Params{"sigma": 1.0}
	p, err := New(NewDirectStep("s", Sharpen, params, 0))
	require.NoError(t, err)

	params["sigma"] = 9.0
	assert.InDelta(t, 1.0, p.Steps()[0].Params.Float("sigma", 0), 1e-9)
}

func TestRun_StepOrder(t *testing.T) {
	var (
		trace []string
		mu    sync.Mutex
	)
	p, err := New(
		tracingStep("first", &trace, &mu),
		tracingStep("second", &trace, &mu),
		tracingStep("third", &trace, &mu),
	)
	require.NoError(t, err)

	_, err = p.Run(gradientImage(8, 4))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, trace)

	trace = nil
	_, err = p.RunUntil(gradientImage(8, 4), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, trace)
}

func TestRun_OrderMatters(t *testing.T) {
	img := gradientImage(32, 4)
	a, err := New(
		NewDirectStep("threshold", Threshold, Params{"thresh": 100.0}, 1),
		NewDirectStep("blur", Blur, Params{"sigma": 2.0}, 0),
	)
	require.NoError(t, err)
	b, err := New(
		NewDirectStep("blur", Blur, Params{"sigma": 2.0}, 0),
		NewDirectStep("threshold", Threshold, Params{"thresh": 100.0}, 1),
	)
	require.NoError(t, err)

	outA, err := a.Run(img)
	require.NoError(t, err)
	outB, err := b.Run(img)
	require.NoError(t, err)
	assert.NotEqual(t, imaging.Clone(outA).Pix, imaging.Clone(outB).Pix)
}

func TestRun_Deterministic(t *testing.T) {
	img := gradientImage(20, 10)
	p, err := New(
		NewDirectStep("gray", Grayscale, nil, 0),
		NewObjectStep("contrast", ContrastEnhancer, EnhanceMethod, Params{"factor": 3.0}, 0),
		NewObjectStep("sharpness", SharpnessEnhancer, EnhanceMethod, Params{"factor": 2.0}, 0),
		NewDirectStep("threshold", Threshold, nil, 1),
	)
	require.NoError(t, err)

	first, err := p.Run(img)
	require.NoError(t, err)
	second, err := p.Run(img)
	require.NoError(t, err)
	assert.Equal(t, imaging.Clone(first).Pix, imaging.Clone(second).Pix)
}

func TestRun_DoesNotModifyInput(t *testing.T) {
	img := gradientImage(10, 10)
	before := append([]uint8(nil), img.Pix...)

	p, err := New(NewDirectStep("invert", Invert, nil, 0))
	require.NoError(t, err)
	_, err = p.Run(img)
	require.NoError(t, err)
	assert.Equal(t, before, img.Pix)
}

func TestRunUntil_Bounds(t *testing.T) {
	p, err := New(NewDirectStep("gray", Grayscale, nil, 0))
	require.NoError(t, err)
	img := gradientImage(4, 4)

	out, err := p.RunUntil(img, 0)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, imaging.Clone(out).Pix)

	_, err = p.RunUntil(img, 1)
	require.NoError(t, err)

	for _, until := range []int{-1, 2} {
		_, err = p.RunUntil(img, until)
		require.ErrorIs(t, err, ErrStepIndex, "until=%d", until)
	}
}

func TestRun_EmptyPipelineReturnsCopy(t *testing.T) {
	img := gradientImage(4, 4)
	out, err := (&Pipeline{}).Run(img)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, imaging.Clone(out).Pix)
}

func TestRun_CaptureIndex(t *testing.T) {
	img := gradientImage(4, 4)

	outOfRange, err := New(NewDirectStep("gray", Grayscale, nil, 1))
	require.NoError(t, err)
	_, err = outOfRange.Run(img)
	require.ErrorIs(t, err, ErrStepIndex)

	notImage, err := New(NewDirectStep("threshold", Threshold, nil, 0))
	require.NoError(t, err)
	_, err = notImage.Run(img)
	require.ErrorIs(t, err, ErrStepOutput)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "threshold", se.Step)
}

func TestRun_UnknownMethod(t *testing.T) {
	p, err := New(NewObjectStep("c", ContrastEnhancer, "sharpen", nil, 0))
	require.NoError(t, err)
	_, err = p.Run(gradientImage(4, 4))
	require.ErrorIs(t, err, ErrInvalidStep)
}

func TestCopySteps(t *testing.T) {
	src, err := New(
		NewDirectStep("a", Grayscale, nil, 0),
		NewDirectStep("b", Sharpen, Params{"sigma": 1.0}, 0),
		NewDirectStep("c", Invert, nil, 0),
	)
	require.NoError(t, err)

	dst := &Pipeline{}
	require.NoError(t, dst.CopySteps(src, 1, 3))
	assert.Equal(t, []string{"b", "c"}, dst.Names())

	require.NoError(t, src.AddStep(NewDirectStep("b", Sharpen, Params{"sigma": 5.0}, 0)))
	assert.InDelta(t, 1.0, dst.Steps()[0].Params.Float("sigma", 0), 1e-9)

	require.NoError(t, dst.CopySteps(src, 0, 0))
	assert.True(t, dst.Empty())

	require.ErrorIs(t, dst.CopySteps(src, 0, 4), ErrStepIndex)
	require.ErrorIs(t, dst.CopySteps(src, 0, -1), ErrStepIndex)
	require.ErrorIs(t, dst.CopySteps(src, 3, 2), ErrStepIndex)
}

func TestClearAndClone(t *testing.T) {
	p, err := New(NewDirectStep("a", Grayscale, nil, 0))
	require.NoError(t, err)

	c := p.Clone()
	p.Clear()
	assert.True(t, p.Empty())
	assert.Equal(t, 1, c.Size())
}

func TestRun_Concurrent(t *testing.T) {
	p := DefaultPreprocessing()
	img := gradientImage(16, 16)
	want, err := p.Run(img)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Run(img)
			assert.NoError(t, err)
			assert.Equal(t, imaging.Clone(want).Pix, imaging.Clone(got).Pix)
		}()
	}
	wg.Wait()
}

func TestStepString(t *testing.T) {
	s := NewObjectStep("contrast", ContrastEnhancer, EnhanceMethod, Params{"factor": 3.0}, 0)
	assert.Contains(t, s.String(), "contrast(img).enhance")
}
