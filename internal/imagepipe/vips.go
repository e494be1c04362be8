//go:build vips

package imagepipe

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

// OpVips is the operation name of the libvips-backed object builder.
const OpVips = "vips"

var vipsOnce sync.Once

func init() {
	DefaultRegistry().RegisterBuilder(OpVips, VipsBuilder)
}

// VipsObject exposes a subset of libvips operations as step methods.
type VipsObject struct {
	ref *vips.ImageRef
}

// VipsBuilder loads the image into libvips.
func VipsBuilder(img image.Image) (Object, error) {
	vipsOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(nil)
	})

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("vips load: %w", err)
	}
	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("vips load: %w", err)
	}
	return &VipsObject{ref: ref}, nil
}

// Method implements Object.
func (o *VipsObject) Method(name string) (MethodFunc, bool) {
	switch name {
	case "resize":
		return func(p Params) (Outputs, error) {
			return o.outputs(o.ref.Resize(p.Float("scale", 2.0), vips.KernelLanczos3))
		}, true
	case "sharpen":
		return func(p Params) (Outputs, error) {
			return o.outputs(o.ref.Sharpen(p.Float("sigma", 1.0), p.Float("x1", 2.0), p.Float("m2", 20.0)))
		}, true
	case "gaussblur":
		return func(p Params) (Outputs, error) {
			return o.outputs(o.ref.GaussianBlur(p.Float("sigma", 1.0)))
		}, true
	case "invert":
		return func(Params) (Outputs, error) {
			return o.outputs(o.ref.Invert())
		}, true
	case "autorotate":
		return func(Params) (Outputs, error) {
			return o.outputs(o.ref.AutoRotate())
		}, true
	default:
		return nil, false
	}
}

// Image implements Imager. The libvips handle is released afterwards.
func (o *VipsObject) Image() (image.Image, error) {
	defer o.ref.Close()
	data, _, err := o.ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}
	return img, nil
}

func (o *VipsObject) outputs(err error) (Outputs, error) {
	if err != nil {
		o.ref.Close()
		return nil, err
	}
	return Outputs{o}, nil
}
