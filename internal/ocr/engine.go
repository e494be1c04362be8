package ocr

import (
	"fmt"
	"log/slog"
)

// Engine kinds selectable from configuration.
const (
	EngineCLI       = "cli"
	EngineGosseract = "gosseract"
)

// NewEngine builds the engine named by kind.
func NewEngine(kind, tesseractPath string, logger *slog.Logger) (Engine, error) {
	switch kind {
	case "", EngineCLI:
		return NewCLIEngine(WithTesseractPath(tesseractPath), WithCLILogger(logger)), nil
	case EngineGosseract:
		e, err := NewGosseractEngine()
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q (must be %q or %q)", kind, EngineCLI, EngineGosseract)
	}
}
