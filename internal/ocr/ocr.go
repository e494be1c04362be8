// Package ocr wraps the Tesseract engine behind a small interface and
// defines the per-token result layout used by the rest of notely.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"unicode"
)

// Engine mode and segmentation mode bounds.
const (
	MinEngineMode       = 0
	MaxEngineMode       = 3
	MinSegmentationMode = 3
	MaxSegmentationMode = 13

	// DefaultEngineMode lets Tesseract pick legacy or LSTM.
	DefaultEngineMode = 3
	// DefaultSegmentationMode is fully automatic page segmentation.
	DefaultSegmentationMode = 3
)

var (
	// ErrConfig is returned for out-of-range engine settings.
	ErrConfig = errors.New("invalid ocr configuration")
	// ErrMalformed is returned when engine output arrays disagree in length.
	ErrMalformed = errors.New("malformed ocr output")
	// ErrEngineUnavailable is returned by engines not compiled in.
	ErrEngineUnavailable = errors.New("ocr engine not available in this build")
)

// ConfigError reports which setting was out of range.
type ConfigError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid ocr configuration: %s=%d (must be between %d and %d)", e.Field, e.Value, e.Min, e.Max)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// Config selects the recognition behaviour for one batch.
type Config struct {
	EngineMode       int  `json:"oem" yaml:"oem" mapstructure:"oem"`
	SegmentationMode int  `json:"psm" yaml:"psm" mapstructure:"psm"`
	UseBestModel     bool `json:"best" yaml:"best" mapstructure:"best"`
	Preprocess       bool `json:"preprocess" yaml:"preprocess" mapstructure:"preprocess"`
}

// DefaultConfig returns OEM 3, PSM 3, best models, no preprocessing.
func DefaultConfig() Config {
	return Config{
		EngineMode:       DefaultEngineMode,
		SegmentationMode: DefaultSegmentationMode,
		UseBestModel:     true,
	}
}

// Validate checks the engine and segmentation modes.
func (c Config) Validate() error {
	if c.EngineMode < MinEngineMode || c.EngineMode > MaxEngineMode {
		return &ConfigError{Field: "oem", Value: c.EngineMode, Min: MinEngineMode, Max: MaxEngineMode}
	}
	if c.SegmentationMode < MinSegmentationMode || c.SegmentationMode > MaxSegmentationMode {
		return &ConfigError{Field: "psm", Value: c.SegmentationMode, Min: MinSegmentationMode, Max: MaxSegmentationMode}
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("--oem %d --psm %d", c.EngineMode, c.SegmentationMode)
}

// Request is what an Engine needs to recognize one image.
type Request struct {
	EngineMode       int
	SegmentationMode int
	TessdataDir      string
	Languages        []string
}

// Engine recognizes text in an image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, req Request) (*Data, error)
}

// Data holds one entry per recognized token in the engine's emission order.
// All arrays have the same length.
type Data struct {
	Left   []int    `json:"left"`
	Top    []int    `json:"top"`
	Width  []int    `json:"width"`
	Height []int    `json:"height"`
	Conf   []int    `json:"conf"`
	Text   []string `json:"text"`
}

// Token is one aligned entry of Data.
type Token struct {
	Left, Top, Width, Height int
	Conf                     int
	Text                     string
}

// Len returns the number of tokens.
func (d *Data) Len() int { return len(d.Text) }

// Validate checks that all arrays are aligned.
func (d *Data) Validate() error {
	n := len(d.Text)
	if len(d.Left) != n || len(d.Top) != n || len(d.Width) != n || len(d.Height) != n || len(d.Conf) != n {
		return fmt.Errorf("%w: left=%d top=%d width=%d height=%d conf=%d text=%d",
			ErrMalformed, len(d.Left), len(d.Top), len(d.Width), len(d.Height), len(d.Conf), n)
	}
	return nil
}

// Append adds a token.
func (d *Data) Append(t Token) {
	d.Left = append(d.Left, t.Left)
	d.Top = append(d.Top, t.Top)
	d.Width = append(d.Width, t.Width)
	d.Height = append(d.Height, t.Height)
	d.Conf = append(d.Conf, t.Conf)
	d.Text = append(d.Text, t.Text)
}

// Token returns the i-th token.
func (d *Data) Token(i int) Token {
	return Token{
		Left:   d.Left[i],
		Top:    d.Top[i],
		Width:  d.Width[i],
		Height: d.Height[i],
		Conf:   d.Conf[i],
		Text:   d.Text[i],
	}
}

// Tokens returns all tokens in order. Data must be valid.
func (d *Data) Tokens() []Token {
	out := make([]Token, d.Len())
	for i := range out {
		out[i] = d.Token(i)
	}
	return out
}

// IsBlank reports whether text has no visible characters. Empty text counts
// as blank.
func IsBlank(text string) bool {
	return strings.IndexFunc(text, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}

// ClampConfidence maps engine confidences (-1 for non-word rows, sometimes
// fractional) onto [0, 100].
func ClampConfidence(c int) int {
	return max(0, min(100, c))
}
