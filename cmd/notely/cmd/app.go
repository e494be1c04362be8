package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/notely/internal/config"
	"github.com/MeKo-Tech/notely/internal/imagepipe"
	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/processor"
	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// commandContext returns the command's context, which is unset when RunE is
// called directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openStore opens the configured database.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.Database.Path, store.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return st, nil
}

// buildPipeline returns the preprocessing chain: a steps file when given,
// otherwise the named preset.
func buildPipeline(presetName, stepsFile string) (*imagepipe.Pipeline, error) {
	if stepsFile != "" {
		specs, err := imagepipe.LoadSpecFile(stepsFile)
		if err != nil {
			return nil, fmt.Errorf("load pipeline file: %w", err)
		}
		return imagepipe.DefaultRegistry().Build(specs)
	}
	if presetName == "" {
		return imagepipe.DefaultPreprocessing(), nil
	}
	preset, err := processor.LookupPreset(presetName)
	if err != nil {
		return nil, err
	}
	return preset.Pipeline(nil)
}

// newEngine builds the configured OCR engine.
func newEngine(cfg *config.Config) (ocr.Engine, error) {
	return ocr.NewEngine(cfg.OCR.Engine, cfg.OCR.TesseractPath, slog.Default())
}

// newProcessor builds a page processor around the configured engine.
func newProcessor(cfg *config.Config, pipeline *imagepipe.Pipeline) (*processor.Processor, error) {
	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	return processor.New(engine,
		processor.WithPipeline(pipeline),
		processor.WithModelSet(cfg.ModelSet()),
		processor.WithLanguages(cfg.OCR.Languages...),
		processor.WithLogger(slog.Default()),
	), nil
}

// resolveDocument finds a document by numeric id or by exact name.
func resolveDocument(ctx context.Context, st *store.Store, ref string) (store.Document, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		doc, err := st.Document(ctx, id)
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return doc, err
		}
	}
	doc, err := st.DocumentByName(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return store.Document{}, fmt.Errorf("document %q: %w", ref, err)
	}
	return doc, err
}

// newTable returns a borderless, left-aligned table for command output.
func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}
