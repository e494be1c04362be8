package cmd

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/notely/internal/search"
	"github.com/spf13/cobra"
)

// searchCmd represents the search command.
var searchCmd = &cobra.Command{
	Use:   "search <document> <query...>",
	Short: "Find the pages of a document containing a query",
	Long: `Search the recognized words of one document.

A word matches when it contains any word of the query. Matches are listed
per page, in page order, with the confidence tier of each word: high (80
and above), medium (40 to 79) or low.

The document is given by id or by name.

Examples:
  notely search "Physics 101" momentum
  notely search 3 "force mass" --case-sensitive
  notely search 3 momentom --fuzzy 1`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx := commandContext(cmd)

		caseSensitive := cfg.Search.CaseSensitive
		if cmd.Flags().Changed("case-sensitive") {
			caseSensitive, _ = cmd.Flags().GetBool("case-sensitive")
		}
		fuzzy := cfg.Search.FuzzyDistance
		if cmd.Flags().Changed("fuzzy") {
			fuzzy, _ = cmd.Flags().GetInt("fuzzy")
		}
		if fuzzy < 0 {
			return fmt.Errorf("invalid fuzzy distance: %d (must not be negative)", fuzzy)
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

		query := strings.Join(args[1:], " ")
		idx := search.BuildPageIndex(pages, query, caseSensitive, search.WithApproximate(fuzzy))

		out := cmd.OutOrStdout()
		if idx.Len() == 0 {
			_, _ = fmt.Fprintf(out, "No matches for %q in %s\n", query, doc.Name)
			return nil
		}
		_, _ = fmt.Fprintf(out, "%d page(s) of %s match %q\n", idx.Len(), doc.Name, query)
		for _, n := range idx.Pages() {
			_, _ = fmt.Fprintf(out, "Page %d:\n", n)
			for _, b := range idx.Matches(n) {
				_, _ = fmt.Fprintf(out, "  %-20s %-6s conf=%3d at (%d,%d) %dx%d\n",
					b.Text, search.Tier(b.Conf), b.Conf, b.Left, b.Top, b.Width, b.Height)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().Bool("case-sensitive", false, "match case exactly")
	searchCmd.Flags().Int("fuzzy", 0, "also match words within this edit distance")
}
