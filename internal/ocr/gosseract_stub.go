//go:build !cgo || !tesseract

package ocr

import (
	"context"
	"image"
)

// GosseractAvailable reports whether the cgo engine is compiled in.
const GosseractAvailable = false

// GosseractEngine is unavailable without the tesseract build tag.
type GosseractEngine struct{}

// NewGosseractEngine always fails in this build.
func NewGosseractEngine() (*GosseractEngine, error) {
	return nil, ErrEngineUnavailable
}

// Name implements Engine.
func (e *GosseractEngine) Name() string { return "tesseract-cgo" }

// Recognize implements Engine.
func (e *GosseractEngine) Recognize(context.Context, image.Image, Request) (*Data, error) {
	return nil, ErrEngineUnavailable
}
