package imagepipe

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func single(t *testing.T, outs Outputs, err error) *image.NRGBA {
	t.Helper()
	require.NoError(t, err)
	require.Len(t, outs, 1)
	img, ok := outs[0].(*image.NRGBA)
	require.True(t, ok, "got %T", outs[0])
	return img
}

func TestThreshold(t *testing.T) {
	outs, err := Threshold(gradientImage(256, 1), Params{"thresh": 127.0, "maxval": 200})
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.InDelta(t, 127.0, outs[0], 1e-9)

	img := outs[1].(*image.NRGBA)
	assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 200, G: 200, B: 200, A: 255}, img.NRGBAAt(255, 0))
}

func TestResize(t *testing.T) {
	img := single(t, Resize(gradientImage(40, 20), Params{"width": 20}))
	assert.Equal(t, image.Pt(20, 10), img.Bounds().Size())

	_, err := Resize(gradientImage(4, 4), nil)
	require.Error(t, err)
}

func TestScaleHeight(t *testing.T) {
	img := single(t, ScaleHeight(gradientImage(10, 10), Params{"factor": 2}))
	assert.Equal(t, image.Pt(20, 20), img.Bounds().Size())

	_, err := ScaleHeight(gradientImage(4, 4), Params{"factor": -1.0})
	require.Error(t, err)
}

func TestFlatField_EvensIllumination(t *testing.T) {
	// Paper whose brightness falls off left to right, with no ink.
	img := gradientImage(64, 16)
	for i := 0; i < len(img.Pix); i += 4 {
		v := 128 + img.Pix[i]/2
		img.Pix[i], img.Pix[i+1], img.Pix[i+2] = v, v, v
	}

	out := single(t, FlatField(img, Params{"sigma": 8.0}))
	left := int(out.NRGBAAt(8, 8).R)
	right := int(out.NRGBAAt(55, 8).R)
	before := int(img.NRGBAAt(55, 8).R) - int(img.NRGBAAt(8, 8).R)
	assert.Less(t, abs(right-left), before)

	_, err := FlatField(img, Params{"sigma": 0.0})
	require.Error(t, err)
}

func TestEnhancers(t *testing.T) {
	src := gradientImage(16, 2)

	t.Run("factor one is identity", func(t *testing.T) {
		for _, b := range []Builder{ContrastEnhancer, SharpnessEnhancer, BrightnessEnhancer} {
			obj, err := b(src)
			require.NoError(t, err)
			fn, ok := obj.Method(EnhanceMethod)
			require.True(t, ok)
			img := single(t, fn(Params{"factor": 1.0}))
			assert.Equal(t, src.Pix, img.Pix)
		}
	})

	t.Run("brightness zero is black", func(t *testing.T) {
		obj, err := BrightnessEnhancer(src)
		require.NoError(t, err)
		fn, _ := obj.Method(EnhanceMethod)
		img := single(t, fn(Params{"factor": 0.0}))
		assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(15, 0))
	})

	t.Run("contrast increases spread", func(t *testing.T) {
		obj, err := ContrastEnhancer(src)
		require.NoError(t, err)
		fn, _ := obj.Method(EnhanceMethod)
		img := single(t, fn(Params{"factor": 3.0}))
		assert.Less(t, img.NRGBAAt(3, 0).R, src.NRGBAAt(3, 0).R)
		assert.Greater(t, img.NRGBAAt(12, 0).R, src.NRGBAAt(12, 0).R)
	})

	t.Run("unknown method", func(t *testing.T) {
		obj, err := ContrastEnhancer(src)
		require.NoError(t, err)
		_, ok := obj.Method("blend")
		assert.False(t, ok)
	})

	t.Run("negative factor", func(t *testing.T) {
		obj, _ := ContrastEnhancer(src)
		fn, _ := obj.Method(EnhanceMethod)
		_, err := fn(Params{"factor": -1.0})
		require.Error(t, err)
	})
}

func TestDirectOpsKeepSize(t *testing.T) {
	src := gradientImage(12, 7)
	for name, fn := range map[string]DirectFunc{
		"grayscale": Grayscale,
		"invert":    Invert,
		"sharpen":   Sharpen,
		"blur":      Blur,
		"contrast":  AdjustContrast,
		"gamma":     AdjustGamma,
		"flatfield": FlatField,
	} {
		t.Run(name, func(t *testing.T) {
			img := single(t, fn(src, nil))
			assert.Equal(t, src.Bounds().Size(), img.Bounds().Size())
		})
	}
}

func TestParams(t *testing.T) {
	p := Params{"f": float32(1.5), "i": 3, "big": int64(7), "b": true, "s": "x"}
	assert.InDelta(t, 1.5, p.Float("f", 0), 1e-9)
	assert.InDelta(t, 3.0, p.Float("i", 0), 1e-9)
	assert.Equal(t, 7, p.Int("big", 0))
	assert.Equal(t, 1, p.Int("f", 0))
	assert.True(t, p.Bool("b", false))
	assert.Equal(t, 9, p.Int("s", 9))
	assert.Equal(t, 9, p.Int("missing", 9))

	nested := Params{"list": []any{1, 2}}
	c := nested.Clone()
	c["list"].([]any)[0] = 99
	assert.Equal(t, 1, nested["list"].([]any)[0])

	assert.NotNil(t, Params(nil).Clone())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
