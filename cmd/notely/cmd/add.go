package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/notely/internal/config"
	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/pdf"
	"github.com/MeKo-Tech/notely/internal/processor"
	"github.com/MeKo-Tech/notely/internal/sources"
	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/MeKo-Tech/notely/internal/worker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// addCmd represents the add command.
var addCmd = &cobra.Command{
	Use:   "add <name> <files or directories...>",
	Short: "Recognize pages and store them as a document",
	Long: `Recognize images and PDFs and store every page under one document.

Directories are expanded to the images and PDFs they contain, in natural
name order. PDFs are split into one page per embedded image. A progress bar
is shown on stderr and the document id is printed when the batch is stored.

Pages that fail to recognize are skipped and listed after the batch; the
remaining pages are still stored.

Examples:
  notely add "Physics 101" scans/
  notely add "Physics 101" week3.pdf --append
  notely add "Lab notes" photo1.jpg photo2.jpg --preset handwritten-page
  notely add "Slides" deck.pdf --pages 1-10 --fast`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		recursive, _ := cmd.Flags().GetBool("recursive")
		include, _ := cmd.Flags().GetStringSlice("include")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")
		files, err := sources.Discover(args[1:], sources.Options{Recursive: recursive, Include: include, Exclude: exclude})
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return worker.ErrNoFiles
		}

		presetName := cfg.Preprocessing.Preset
		if cmd.Flags().Changed("preset") {
			presetName, _ = cmd.Flags().GetString("preset")
		}
		stepsFile := cfg.Preprocessing.StepsFile
		if cmd.Flags().Changed("pipeline-file") {
			stepsFile, _ = cmd.Flags().GetString("pipeline-file")
		}
		ocrCfg, err := jobConfig(cmd, cfg)
		if err != nil {
			return err
		}
		pipeline, err := buildPipeline(presetName, stepsFile)
		if err != nil {
			return err
		}

		poolSize := cfg.Worker.PoolSize
		if cmd.Flags().Changed("workers") {
			poolSize, _ = cmd.Flags().GetInt("workers")
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		name := args[0]
		var existing *int64
		if appendTo, _ := cmd.Flags().GetBool("append"); appendTo {
			doc, err := st.DocumentByName(ctx, name)
			switch {
			case err == nil:
				existing = &doc.ID
			case errors.Is(err, store.ErrNotFound):
				slog.Info("Append target not found, creating a new document", "name", name)
			default:
				return err
			}
		}

		pageRange, _ := cmd.Flags().GetString("pages")
		pages, cleanup, err := pdf.SplitAll(ctx, files, pdf.WithPages(pageRange))
		if err != nil {
			return fmt.Errorf("split input files: %w", err)
		}

		proc, err := newProcessor(cfg, pipeline)
		if err != nil {
			pdf.RemoveAll(cleanup)
			return err
		}
		w := worker.New(proc, st,
			worker.WithPoolSize(poolSize),
			worker.WithMessageBuffer(cfg.Worker.MessageBuffer),
			worker.WithLogger(slog.Default()),
		)

		batchID, err := w.Submit(ctx, worker.Job{
			Name:       name,
			ExistingID: existing,
			Files:      pages,
			Cleanup:    cleanup,
			Config:     ocrCfg,
		})
		if err != nil {
			pdf.RemoveAll(cleanup)
			return err
		}
		w.Shutdown()

		result := &batchResult{id: batchID}
		bar := worker.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Recognizing: ")
		relay := worker.NewRelay(w.Messages(),
			worker.LogListener(slog.Default()),
			worker.NewProgressCallbackListener(bar),
			result.listener(),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return w.Run(gctx) })
		// The relay drains until the worker closes the channel.
		g.Go(func() error { return relay.Run(context.WithoutCancel(gctx)) })
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return result.report(cmd)
	},
}

// jobConfig resolves the recognition settings: configuration, then the
// preset named on the command line, then explicit flags.
func jobConfig(cmd *cobra.Command, cfg *config.Config) (ocr.Config, error) {
	c := cfg.ToOCRConfig()
	if cmd.Flags().Changed("preset") {
		name, _ := cmd.Flags().GetString("preset")
		preset, err := processor.LookupPreset(name)
		if err != nil {
			return ocr.Config{}, err
		}
		c = preset.Config
	}
	if cmd.Flags().Changed("oem") {
		c.EngineMode, _ = cmd.Flags().GetInt("oem")
	}
	if cmd.Flags().Changed("psm") {
		c.SegmentationMode, _ = cmd.Flags().GetInt("psm")
	}
	if cmd.Flags().Changed("fast") {
		fast, _ := cmd.Flags().GetBool("fast")
		c.UseBestModel = !fast
	}
	if cmd.Flags().Changed("preprocess") {
		c.Preprocess, _ = cmd.Flags().GetBool("preprocess")
	}
	return c, c.Validate()
}

// batchResult records how the submitted batch ended.
type batchResult struct {
	id     string
	done   *worker.BatchDone
	failed *worker.BatchFailed
}

func (r *batchResult) listener() worker.Listener {
	return worker.ListenerFuncs{
		BatchDone: func(m worker.BatchDone) {
			if m.BatchID == r.id {
				r.done = &m
			}
		},
		BatchFailed: func(m worker.BatchFailed) {
			if m.BatchID == r.id {
				r.failed = &m
			}
		},
	}
}

func (r *batchResult) report(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	switch {
	case r.done != nil:
		for _, f := range r.done.Failed {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", f.String())
		}
		_, _ = fmt.Fprintf(out, "Stored %d page(s) in document %d\n", r.done.Pages, r.done.DocumentID)
		return nil
	case r.failed != nil:
		return fmt.Errorf("batch %s failed: %w", r.id, r.failed.Err)
	default:
		return fmt.Errorf("batch %s did not finish", r.id)
	}
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().Bool("append", false, "append to the document with this name instead of creating one")
	addCmd.Flags().Int("oem", ocr.DefaultEngineMode,
		fmt.Sprintf("tesseract engine mode (%d-%d)", ocr.MinEngineMode, ocr.MaxEngineMode))
	addCmd.Flags().Int("psm", ocr.DefaultSegmentationMode,
		fmt.Sprintf("tesseract page segmentation mode (%d-%d)", ocr.MinSegmentationMode, ocr.MaxSegmentationMode))
	addCmd.Flags().Bool("fast", false, "use the fast models instead of the best ones")
	addCmd.Flags().Bool("preprocess", false, "run the preprocessing chain before recognition")
	addCmd.Flags().String("preset", "", "recognition preset (screenshot, printed, handwritten-paragraph, handwritten-page)")
	addCmd.Flags().String("pipeline-file", "", "YAML or JSON file with preprocessing steps")
	addCmd.Flags().Int("workers", 0, "pages recognized in parallel (0 = number of CPUs)")
	addCmd.Flags().String("pages", "", "PDF page range, e.g. 1-5 or 1,3,5")
	addCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	addCmd.Flags().StringSlice("include", nil, "file name patterns to include from directories")
	addCmd.Flags().StringSlice("exclude", nil, "file name patterns to exclude from directories")
}
