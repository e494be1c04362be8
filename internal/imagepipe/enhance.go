package imagepipe

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// EnhanceMethod is the method name every Enhancer exposes.
const EnhanceMethod = "enhance"

// Enhancer blends an image with a degenerate version of itself. A factor of
// 1 returns the original, 0 returns the degenerate image, and values above 1
// extrapolate away from it.
type Enhancer struct {
	img        *image.NRGBA
	degenerate *image.NRGBA
}

// Method implements Object.
func (e *Enhancer) Method(name string) (MethodFunc, bool) {
	if name != EnhanceMethod {
		return nil, false
	}
	return e.enhance, true
}

func (e *Enhancer) enhance(p Params) (Outputs, error) {
	factor := p.Float("factor", 1.0)
	if factor < 0 {
		return nil, errors.New("enhance factor must not be negative")
	}
	out := image.NewNRGBA(e.img.Bounds())
	for i := 0; i < len(e.img.Pix); i += 4 {
		for c := range 3 {
			d := float64(e.degenerate.Pix[i+c])
			v := float64(e.img.Pix[i+c])
			out.Pix[i+c] = clampByte(d + (v-d)*factor)
		}
		out.Pix[i+3] = e.img.Pix[i+3]
	}
	return Single(out), nil
}

// ContrastEnhancer adjusts contrast against the mean gray level.
func ContrastEnhancer(img image.Image) (Object, error) {
	src := imaging.Clone(img)
	gray := imaging.Grayscale(src)
	var sum float64
	for i := 0; i < len(gray.Pix); i += 4 {
		sum += float64(gray.Pix[i])
	}
	var mean uint8
	if n := len(gray.Pix) / 4; n > 0 {
		mean = clampByte(sum / float64(n))
	}
	degenerate := image.NewNRGBA(src.Bounds())
	for i := 0; i < len(degenerate.Pix); i += 4 {
		degenerate.Pix[i], degenerate.Pix[i+1], degenerate.Pix[i+2] = mean, mean, mean
		degenerate.Pix[i+3] = src.Pix[i+3]
	}
	return &Enhancer{img: src, degenerate: degenerate}, nil
}

// SharpnessEnhancer adjusts sharpness against a smoothed copy.
func SharpnessEnhancer(img image.Image) (Object, error) {
	src := imaging.Clone(img)
	return &Enhancer{img: src, degenerate: imaging.Blur(src, 1.0)}, nil
}

// BrightnessEnhancer adjusts brightness against black.
func BrightnessEnhancer(img image.Image) (Object, error) {
	src := imaging.Clone(img)
	return &Enhancer{img: src, degenerate: image.NewNRGBA(src.Bounds())}, nil
}
