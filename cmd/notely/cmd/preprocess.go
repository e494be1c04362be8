package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/notely/internal/utils"
	"github.com/spf13/cobra"
)

// preprocessCmd represents the preprocess command.
var preprocessCmd = &cobra.Command{
	Use:   "preprocess <image>",
	Short: "Run the preprocessing chain on an image",
	Long: `Run the preprocessing chain on one image and save the result.

Use --until to stop after the first N steps and inspect intermediate
results, and --list to print the steps of the chosen chain.

Examples:
  notely preprocess scan.jpg --preset handwritten-page --out clean.png
  notely preprocess scan.jpg --pipeline-file steps.yaml --until 1 --out gray.png
  notely preprocess scan.jpg --preset handwritten-paragraph --list`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		presetName := cfg.Preprocessing.Preset
		if cmd.Flags().Changed("preset") {
			presetName, _ = cmd.Flags().GetString("preset")
		}
		stepsFile := cfg.Preprocessing.StepsFile
		if cmd.Flags().Changed("pipeline-file") {
			stepsFile, _ = cmd.Flags().GetString("pipeline-file")
		}
		pipeline, err := buildPipeline(presetName, stepsFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if list, _ := cmd.Flags().GetBool("list"); list {
			for i, s := range pipeline.Steps() {
				_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, s.String())
			}
			return nil
		}

		outPath, _ := cmd.Flags().GetString("out")
		if outPath == "" {
			return fmt.Errorf("--out is required")
		}
		until, _ := cmd.Flags().GetInt("until")
		if until < 0 {
			until = pipeline.Size()
		}

		img, _, err := utils.LoadImage(args[0])
		if err != nil {
			return err
		}
		result, err := pipeline.RunUntil(img, until)
		if err != nil {
			return err
		}
		if err := utils.SaveImage(result, outPath); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Applied %d of %d step(s), wrote %s\n", until, pipeline.Size(), outPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(preprocessCmd)
	preprocessCmd.Flags().String("preset", "", "preset whose preprocessing chain is used")
	preprocessCmd.Flags().String("pipeline-file", "", "YAML or JSON file with preprocessing steps")
	preprocessCmd.Flags().Int("until", -1, "apply only the first N steps (-1 = all)")
	preprocessCmd.Flags().StringP("out", "o", "", "output image path")
	preprocessCmd.Flags().Bool("list", false, "list the steps and exit")
}
