package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// DefaultTesseractPath is looked up in PATH.
const DefaultTesseractPath = "tesseract"

// CLIEngine runs the tesseract binary once per image and parses its TSV
// output. It needs no cgo.
type CLIEngine struct {
	path   string
	logger *slog.Logger
}

// CLIOption configures a CLIEngine.
type CLIOption func(*CLIEngine)

// WithTesseractPath sets the binary to execute.
func WithTesseractPath(path string) CLIOption {
	return func(e *CLIEngine) {
		if path != "" {
			e.path = path
		}
	}
}

// WithCLILogger sets the logger.
func WithCLILogger(logger *slog.Logger) CLIOption {
	return func(e *CLIEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewCLIEngine creates an engine backed by the tesseract executable.
func NewCLIEngine(opts ...CLIOption) *CLIEngine {
	e := &CLIEngine{path: DefaultTesseractPath, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Engine.
func (e *CLIEngine) Name() string { return "tesseract-cli" }

// Args returns the command line for req, reading the image from stdin.
func (e *CLIEngine) Args(req Request) []string {
	args := []string{"stdin", "stdout",
		"--oem", strconv.Itoa(req.EngineMode),
		"--psm", strconv.Itoa(req.SegmentationMode),
	}
	if req.TessdataDir != "" {
		args = append(args, "--tessdata-dir", req.TessdataDir)
	}
	if len(req.Languages) > 0 {
		args = append(args, "-l", strings.Join(req.Languages, "+"))
	}
	return append(args, "tsv")
}

// Recognize implements Engine.
func (e *CLIEngine) Recognize(ctx context.Context, img image.Image, req Request) (*Data, error) {
	var png bytes.Buffer
	if err := imaging.Encode(&png, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode page for tesseract: %w", err)
	}

	args := e.Args(req)
	cmd := exec.CommandContext(ctx, e.path, args...) //nolint:gosec // G204: binary path comes from configuration
	cmd.Stdin = &png
	// Pages are already processed in parallel; keep tesseract single-threaded.
	cmd.Env = append(os.Environ(), "OMP_THREAD_LIMIT=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("running tesseract", "path", e.path, "args", args)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("tesseract execution failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	data, err := ParseTSV(&stdout)
	if err != nil {
		return nil, err
	}
	return data, data.Validate()
}
