package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// deleteCmd represents the delete command.
var deleteCmd = &cobra.Command{
	Use:     "delete <document>",
	Aliases: []string{"rm"},
	Short:   "Delete a document with all of its pages",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx := commandContext(cmd)

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		doc, err := resolveDocument(ctx, st, args[0])
		if err != nil {
			return err
		}
		removed, err := st.DeleteDocument(ctx, doc.ID)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted document %d (%s), %d row(s) removed\n", doc.ID, doc.Name, removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
