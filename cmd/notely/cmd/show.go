package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/search"
	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/MeKo-Tech/notely/internal/utils"
	"github.com/spf13/cobra"
)

// showCmd represents the show command.
var showCmd = &cobra.Command{
	Use:   "show <document> <page>",
	Short: "Print or export one page of a document",
	Long: `Print the recognized text of a page, or export its original image.

Pages are numbered from 0 in the order they were stored. With --out the
stored image is written as PNG; --highlight outlines every word matching
the query, colored by confidence: green (high), blue (medium), red (low).

Examples:
  notely show "Physics 101" 0
  notely show 3 2 --out page2.png
  notely show 3 2 --out page2.png --highlight momentum`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx := commandContext(cmd)

		number, err := strconv.Atoi(args[1])
		if err != nil || number < 0 {
			return fmt.Errorf("invalid page number %q", args[1])
		}
		outPath, _ := cmd.Flags().GetString("out")
		highlight, _ := cmd.Flags().GetString("highlight")
		caseSensitive := cfg.Search.CaseSensitive
		if cmd.Flags().Changed("case-sensitive") {
			caseSensitive, _ = cmd.Flags().GetBool("case-sensitive")
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		doc, err := resolveDocument(ctx, st, args[0])
		if err != nil {
			return err
		}
		pages, err := st.Pages(ctx, doc.ID)
		if err != nil {
			return err
		}
		page, ok := findPage(pages, number)
		if !ok {
			return fmt.Errorf("page %d of %s: %w", number, doc.Name, store.ErrNotFound)
		}

		out := cmd.OutOrStdout()
		if outPath == "" {
			_, _ = fmt.Fprintln(out, pageText(page))
			return nil
		}

		data, err := st.PageImage(ctx, doc.ID, number)
		if err != nil {
			return err
		}
		if highlight == "" {
			if err := os.WriteFile(outPath, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			_, _ = fmt.Fprintf(out, "Wrote page %d of %s to %s\n", number, doc.Name, outPath)
			return nil
		}

		img, err := utils.DecodeImage(data)
		if err != nil {
			return err
		}
		idx := search.BuildPageIndex([]store.Page{page}, highlight, caseSensitive)
		marked := search.RenderHighlights(img, idx.Matches(number))
		if err := utils.SaveImage(marked, outPath); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Wrote page %d of %s to %s with %d highlight(s)\n",
			number, doc.Name, outPath, len(idx.Matches(number)))
		return nil
	},
}

func findPage(pages []store.Page, number int) (store.Page, bool) {
	for _, p := range pages {
		if p.Number == number {
			return p, true
		}
	}
	return store.Page{}, false
}

// pageText joins the page's words in reading order as stored.
func pageText(p store.Page) string {
	words := make([]string, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		if !ocr.IsBlank(b.Text) {
			words = append(words, b.Text)
		}
	}
	return strings.Join(words, " ")
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringP("out", "o", "", "write the page image to this PNG file")
	showCmd.Flags().String("highlight", "", "outline words matching this query in the exported image")
	showCmd.Flags().Bool("case-sensitive", false, "match the highlight query case-sensitively")
}
