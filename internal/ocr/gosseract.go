//go:build cgo && tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// GosseractAvailable reports whether the cgo engine is compiled in.
const GosseractAvailable = true

// GosseractEngine calls libtesseract in-process. A client is created per
// call because gosseract clients are not safe for concurrent use.
type GosseractEngine struct {
	clientFactory func() *gosseract.Client
}

// NewGosseractEngine creates the in-process engine.
func NewGosseractEngine() (*GosseractEngine, error) {
	return &GosseractEngine{clientFactory: gosseract.NewClient}, nil
}

// Name implements Engine.
func (e *GosseractEngine) Name() string { return "tesseract-cgo" }

// Recognize implements Engine.
func (e *GosseractEngine) Recognize(ctx context.Context, img image.Image, req Request) (*Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var png bytes.Buffer
	if err := imaging.Encode(&png, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode page for tesseract: %w", err)
	}

	c := e.clientFactory()
	defer func() { _ = c.Close() }()

	if req.TessdataDir != "" {
		c.TessdataPrefix = req.TessdataDir
	}
	if len(req.Languages) > 0 {
		if err := c.SetLanguage(req.Languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetVariable("tessedit_ocr_engine_mode", strconv.Itoa(req.EngineMode)); err != nil {
		return nil, fmt.Errorf("set engine mode: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(req.SegmentationMode)); err != nil {
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := c.SetImageFromBytes(png.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("get bounding boxes: %w", err)
	}

	data := &Data{}
	for _, b := range boxes {
		data.Append(Token{
			Left:   b.Box.Min.X,
			Top:    b.Box.Min.Y,
			Width:  b.Box.Dx(),
			Height: b.Box.Dy(),
			Conf:   ClampConfidence(int(b.Confidence + 0.5)),
			Text:   b.Word,
		})
	}
	return data, nil
}
