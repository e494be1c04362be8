package imagepipe

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Grayscale converts the image to grayscale.
func Grayscale(img image.Image, _ Params) (Outputs, error) {
	return Single(imaging.Grayscale(img)), nil
}

// Invert produces the negative of the image.
func Invert(img image.Image, _ Params) (Outputs, error) {
	return Single(imaging.Invert(img)), nil
}

// Resize scales to width x height. A zero dimension keeps the aspect ratio.
func Resize(img image.Image, p Params) (Outputs, error) {
	w, h := p.Int("width", 0), p.Int("height", 0)
	if w < 0 || h < 0 || (w == 0 && h == 0) {
		return nil, errors.New("resize needs a positive width or height")
	}
	return Single(imaging.Resize(img, w, h, imaging.Lanczos)), nil
}

// ScaleHeight scales the image by factor, keeping the aspect ratio.
func ScaleHeight(img image.Image, p Params) (Outputs, error) {
	factor := p.Float("factor", 2.0)
	if factor <= 0 {
		return nil, errors.New("scale factor must be positive")
	}
	h := int(math.Round(float64(img.Bounds().Dy()) * factor))
	if h < 1 {
		h = 1
	}
	return Single(imaging.Resize(img, 0, h, imaging.Lanczos)), nil
}

// Sharpen applies an unsharp mask with the given sigma.
func Sharpen(img image.Image, p Params) (Outputs, error) {
	return Single(imaging.Sharpen(img, p.Float("sigma", 1.0))), nil
}

// Blur applies a gaussian blur with the given sigma.
func Blur(img image.Image, p Params) (Outputs, error) {
	return Single(imaging.Blur(img, p.Float("sigma", 1.0))), nil
}

// AdjustContrast changes contrast by percentage in [-100, 100].
func AdjustContrast(img image.Image, p Params) (Outputs, error) {
	return Single(imaging.AdjustContrast(img, p.Float("percentage", 50))), nil
}

// AdjustGamma applies gamma correction.
func AdjustGamma(img image.Image, p Params) (Outputs, error) {
	gamma := p.Float("gamma", 1.0)
	if gamma <= 0 {
		return nil, errors.New("gamma must be positive")
	}
	return Single(imaging.AdjustGamma(img, gamma)), nil
}

// Threshold binarizes the image on luminance. Pixels brighter than thresh
// become maxval, the rest become black. Like a classic threshold call it
// returns (thresh, image), so steps using it capture index 1.
func Threshold(img image.Image, p Params) (Outputs, error) {
	thresh := p.Float("thresh", 127)
	maxval := clampByte(p.Float("maxval", 255))
	gray := imaging.Grayscale(img)
	out := imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		if float64(c.R) > thresh {
			return color.NRGBA{R: maxval, G: maxval, B: maxval, A: 255}
		}
		return color.NRGBA{A: 255}
	})
	return Outputs{thresh, out}, nil
}

// FlatField evens out uneven lighting. The background is estimated with a
// wide blur, and every pixel is divided by it and rescaled by the mean
// background level.
func FlatField(img image.Image, p Params) (Outputs, error) {
	sigma := p.Float("sigma", 10)
	if sigma <= 0 {
		return nil, errors.New("flat field sigma must be positive")
	}
	gray := imaging.Grayscale(img)
	background := imaging.Blur(gray, sigma)

	var sum float64
	for i := 0; i < len(background.Pix); i += 4 {
		sum += float64(background.Pix[i])
	}
	n := len(background.Pix) / 4
	if n == 0 {
		return Single(gray), nil
	}
	mean := sum / float64(n)

	out := image.NewNRGBA(gray.Bounds())
	for i := 0; i < len(gray.Pix); i += 4 {
		bg := float64(background.Pix[i])
		if bg < 1 {
			bg = 1
		}
		v := clampByte(float64(gray.Pix[i]) / bg * mean)
		out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = v, v, v, 255
	}
	return Single(out), nil
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
