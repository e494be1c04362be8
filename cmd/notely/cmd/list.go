package cmd

import (
	"fmt"
	"strconv"

	"github.com/MeKo-Tech/notely/internal/search"
	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/spf13/cobra"
)

// listCmd represents the list command.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Long: `List the stored documents sorted by name.

With --filter, only documents matching the query are shown. In title mode
the query is matched against the document name; in content mode a document
matches when any recognized word contains any word of the query.

Examples:
  notely list
  notely list --filter physics
  notely list --filter "force mass" --mode content`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx := commandContext(cmd)

		query, _ := cmd.Flags().GetString("filter")
		modeName := cfg.Search.Mode
		if cmd.Flags().Changed("mode") {
			modeName, _ = cmd.Flags().GetString("mode")
		}
		mode, err := search.ParseMode(modeName)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		var candidates []store.DocumentPages
		if mode == search.ByContent && query != "" {
			if candidates, err = st.LoadCorpus(ctx); err != nil {
				return err
			}
		} else {
			docs, err := st.Documents(ctx)
			if err != nil {
				return err
			}
			for _, d := range docs {
				candidates = append(candidates, store.DocumentPages{Document: d})
			}
		}
		docs := search.FilterDocuments(candidates, query, mode)

		out := cmd.OutOrStdout()
		if len(docs) == 0 {
			_, _ = fmt.Fprintln(out, "No documents found")
			return nil
		}
		table := newTable(out, "ID", "NAME", "PAGES", "CREATED")
		for _, d := range docs {
			table.Append([]string{
				strconv.FormatInt(d.ID, 10),
				d.Name,
				strconv.Itoa(d.PageCount),
				d.CreatedAt.Local().Format("2006-01-02 15:04"),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("filter", "", "only show documents matching this query")
	listCmd.Flags().String("mode", "title", "filter mode: title or content")
}
