package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/notely/internal/eval"
	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/processor"
	"github.com/MeKo-Tech/notely/internal/utils"
	"github.com/spf13/cobra"
)

// evaluateCmd represents the evaluate command.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <image> <expected.txt>",
	Short: "Score recognition presets against known text",
	Long: `Recognize an image with each preset and score the result against the
expected words in a text file.

The score is the share of expected words found among the recognized ones,
allowing a small edit distance. Presets are listed best first.

Examples:
  notely evaluate page.jpg page.txt
  notely evaluate page.jpg page.txt --preset printed --preset handwritten-page
  notely evaluate page.jpg page.txt --absolute 1 --format json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx := commandContext(cmd)

		names, _ := cmd.Flags().GetStringSlice("preset")
		if len(names) == 0 {
			names = processor.PresetNames()
		}
		tol := eval.DefaultTolerance()
		if cmd.Flags().Changed("absolute") {
			n, _ := cmd.Flags().GetInt("absolute")
			tol = eval.Absolute(n)
		} else if cmd.Flags().Changed("relative") {
			f, _ := cmd.Flags().GetFloat64("relative")
			tol = eval.Relative(f)
		}
		format, _ := cmd.Flags().GetString("format")
		if format != "text" && format != "json" {
			return fmt.Errorf("invalid format %q (must be text or json)", format)
		}

		expected, err := eval.ReadGroundTruth(args[1])
		if err != nil {
			return err
		}
		img, _, err := utils.LoadImage(args[0])
		if err != nil {
			return err
		}

		candidates, err := presetCandidates(names, cfg.ModelSet().Dir, cfg.OCR.Languages)
		if err != nil {
			return err
		}
		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}
		scores, err := eval.Compare(ctx, engine, img, expected, candidates, tol)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if format == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(scores)
		}
		table := newTable(out, "PRESET", "SCORE", "TIME", "RECOGNIZED")
		for _, s := range scores {
			table.Append([]string{
				s.Name,
				fmt.Sprintf("%.3f", s.Loss),
				s.Elapsed.Round(time.Millisecond).String(),
				strings.Join(s.Predicted, " "),
			})
		}
		table.Render()
		return nil
	},
}

// presetCandidates turns preset names into evaluation candidates. Presets
// that do not preprocess are scored on the raw image.
func presetCandidates(names []string, tessdata func(best bool) string, languages []string) ([]eval.Candidate, error) {
	candidates := make([]eval.Candidate, 0, len(names))
	for _, name := range names {
		preset, err := processor.LookupPreset(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		c := eval.Candidate{
			Name: preset.Name,
			Request: ocr.Request{
				EngineMode:       preset.Config.EngineMode,
				SegmentationMode: preset.Config.SegmentationMode,
				TessdataDir:      tessdata(preset.Config.UseBestModel),
				Languages:        languages,
			},
		}
		if preset.Config.Preprocess {
			if c.Pipeline, err = preset.Pipeline(nil); err != nil {
				return nil, err
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringSlice("preset", nil, "presets to compare (default: all)")
	evaluateCmd.Flags().Int("absolute", 0, "allow this many edits per word")
	evaluateCmd.Flags().Float64("relative", 0.2, "allow edits proportional to word length")
	evaluateCmd.Flags().String("format", "text", "output format: text or json")
}
