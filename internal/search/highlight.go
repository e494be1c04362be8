package search

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/MeKo-Tech/notely/internal/utils"
	"github.com/disintegration/imaging"
)

// HighlightThickness is the outline width in pixels.
const HighlightThickness = 3

// ConfidenceTier groups recognition confidence for display.
type ConfidenceTier int

const (
	Low ConfidenceTier = iota
	Medium
	High
)

// Tier classifies a 0..100 confidence.
func Tier(conf int) ConfidenceTier {
	switch {
	case conf >= 80:
		return High
	case conf >= 40:
		return Medium
	default:
		return Low
	}
}

func (t ConfidenceTier) String() string {
	switch t {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// Color returns the outline color: green, blue or red.
func (t ConfidenceTier) Color() color.NRGBA {
	switch t {
	case High:
		return color.NRGBA{G: 255, A: 255}
	case Medium:
		return color.NRGBA{B: 255, A: 255}
	default:
		return color.NRGBA{R: 255, A: 255}
	}
}

// RenderHighlights returns a copy of img with each block outlined in its
// confidence tier's color.
func RenderHighlights(img image.Image, blocks []store.Block) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := imaging.Clone(img)
	for _, b := range blocks {
		rect := utils.RectFromBox(b.Left, b.Top, b.Width, b.Height)
		utils.DrawRect(dst, rect, Tier(b.Conf).Color(), HighlightThickness)
	}
	return dst
}
