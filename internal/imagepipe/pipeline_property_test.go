package imagepipe

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genNoiseImage(w, h int, seed int64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	state := uint64(seed)*6364136223846793005 + 1442695040888963407
	for y := range h {
		for x := range w {
			state = state*6364136223846793005 + 1442695040888963407
			v := uint8(state >> 56)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	return img
}

func propertyPipeline() *Pipeline {
	p, err := DefaultRegistry().Build([]StepSpec{
		{Op: OpGrayscale},
		{Op: OpEnhContr, Params: map[string]any{"factor": 2.0}},
		{Op: OpSharpen, Params: map[string]any{"sigma": 0.8}},
		{Op: OpThreshold, Params: map[string]any{"thresh": 120.0}},
	})
	if err != nil {
		panic(err)
	}
	return p
}

func TestPipeline_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	p := propertyPipeline()

	properties.Property("running twice yields identical pixels", prop.ForAll(
		func(w, h int, seed int64) bool {
			img := genNoiseImage(w, h, seed)
			a, err := p.Run(img)
			if err != nil {
				return false
			}
			b, err := p.Run(img)
			if err != nil {
				return false
			}
			return bytes.Equal(imaging.Clone(a).Pix, imaging.Clone(b).Pix)
		},
		gen.IntRange(1, 24),
		gen.IntRange(1, 24),
		gen.Int64(),
	))

	properties.Property("a prefix followed by the remaining steps equals a full run", prop.ForAll(
		func(w, h, split int, seed int64) bool {
			img := genNoiseImage(w, h, seed)
			full, err := p.Run(img)
			if err != nil {
				return false
			}
			head, err := p.RunUntil(img, split)
			if err != nil {
				return false
			}
			rest := &Pipeline{}
			if err := rest.CopySteps(p, split, p.Size()); err != nil {
				return false
			}
			tail, err := rest.Run(head)
			if err != nil {
				return false
			}
			return bytes.Equal(imaging.Clone(full).Pix, imaging.Clone(tail).Pix)
		},
		gen.IntRange(1, 16),
		gen.IntRange(1, 16),
		gen.IntRange(0, 4),
		gen.Int64(),
	))

	properties.Property("output keeps the input dimensions", prop.ForAll(
		func(w, h int) bool {
			out, err := p.Run(genNoiseImage(w, h, 1))
			return err == nil && out.Bounds().Dx() == w && out.Bounds().Dy() == h
		},
		gen.IntRange(1, 40),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}
