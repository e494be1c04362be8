package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TestImageConfig holds configuration for generating page images.
type TestImageConfig struct {
	Lines      []string
	Width      int
	Height     int
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
}

// DefaultTestImageConfig returns a small white page with one line of text.
func DefaultTestImageConfig() TestImageConfig {
	return TestImageConfig{
		Lines:      []string{"Sample Text"},
		Width:      320,
		Height:     120,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
	}
}

// GenerateTextImage renders the configured lines top to bottom.
func GenerateTextImage(config TestImageConfig) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, config.Width, config.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{config.Foreground},
		Face: config.FontFace,
	}
	lineHeight := config.FontFace.Metrics().Height.Ceil()
	for i, line := range config.Lines {
		drawer.Dot = fixed.P(8, (i+1)*lineHeight+4)
		drawer.DrawString(line)
	}
	return img
}

// WritePage renders a page of the given width to dir/name and returns the
// path. Tests pair distinct widths with FakeEngine.ByWidth to script the
// recognition result of each page.
func WritePage(t *testing.T, dir, name string, width int, lines ...string) string {
	t.Helper()

	cfg := DefaultTestImageConfig()
	cfg.Width = width
	if len(lines) > 0 {
		cfg.Lines = lines
	}
	path := filepath.Join(dir, name)
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, imaging.Save(GenerateTextImage(cfg), path))
	return path
}

// SolidImage returns a w x h image of one color.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}
