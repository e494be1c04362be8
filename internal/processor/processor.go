// Package processor turns one page image into its stored form: a lossless
// copy of the original, the recognized tokens, and a page summary.
package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/notely/internal/imagepipe"
	"github.com/MeKo-Tech/notely/internal/models"
	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/utils"
)

var (
	// ErrDecode is returned when the page image cannot be read.
	ErrDecode = errors.New("cannot decode page image")
	// ErrEngine is returned when the OCR engine fails or crashes.
	ErrEngine = errors.New("ocr engine failed")
)

// PageResult is the outcome of processing one page. Index is the page's
// position in its batch and is used to restore order after parallel work.
type PageResult struct {
	Index   int
	Path    string
	Image   []byte
	Data    *ocr.Data
	Summary *Summary
}

// Processor runs recognition on single pages. It holds no per-page state and
// is safe for concurrent use.
type Processor struct {
	engine    ocr.Engine
	pipeline  *imagepipe.Pipeline
	models    models.ModelSet
	languages []string
	logger    *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithPipeline sets the preprocessing chain used when a job asks for it.
func WithPipeline(p *imagepipe.Pipeline) Option {
	return func(pr *Processor) {
		if p != nil {
			pr.pipeline = p
		}
	}
}

// WithModelSet sets the tessdata directories.
func WithModelSet(m models.ModelSet) Option {
	return func(pr *Processor) { pr.models = m }
}

// WithLanguages sets the recognition languages.
func WithLanguages(langs ...string) Option {
	return func(pr *Processor) { pr.languages = append([]string(nil), langs...) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(pr *Processor) {
		if logger != nil {
			pr.logger = logger
		}
	}
}

// New creates a processor around engine.
func New(engine ocr.Engine, opts ...Option) *Processor {
	p := &Processor{
		engine:   engine,
		pipeline: imagepipe.DefaultPreprocessing(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pipeline returns the preprocessing chain.
func (p *Processor) Pipeline() *imagepipe.Pipeline { return p.pipeline }

// ProcessImage recognizes the image at path. The original is always kept,
// encoded losslessly; preprocessing only affects what the engine sees.
func (p *Processor) ProcessImage(ctx context.Context, index int, path string, cfg ocr.Config) (*PageResult, error) {
	if err := cfg.Validate(); err != nil {
		p.logger.Error("rejected ocr configuration", "path", path, "config", cfg.String(), "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}

	original, err := utils.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}

	input := img
	if cfg.Preprocess {
		input, err = p.pipeline.Run(img)
		if err != nil {
			return nil, fmt.Errorf("preprocess %s: %w", path, err)
		}
	}

	req := ocr.Request{
		EngineMode:       cfg.EngineMode,
		SegmentationMode: cfg.SegmentationMode,
		TessdataDir:      p.models.Dir(cfg.UseBestModel),
		Languages:        p.languages,
	}
	data, err := p.recognize(ctx, input, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	summary := NewSummary(data)
	p.logger.Debug("page processed",
		"index", index,
		"path", path,
		"tokens", data.Len(),
		"words", summary.TokenCount(),
		"models", models.Variant(cfg.UseBestModel),
		"duration", time.Since(start))

	return &PageResult{
		Index:   index,
		Path:    path,
		Image:   original,
		Data:    data,
		Summary: summary,
	}, nil
}

// recognize calls the engine, turning a panic into ErrEngine.
func (p *Processor) recognize(ctx context.Context, img image.Image, req ocr.Request) (data *ocr.Data, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("%w: %s panicked: %v", ErrEngine, p.engine.Name(), r)
		}
	}()

	data, err = p.engine.Recognize(ctx, img, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEngine, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s returned no data", ErrEngine, p.engine.Name())
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngine, err)
	}
	return data, nil
}
