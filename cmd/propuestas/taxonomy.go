package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openprogramia/propuestas/internal/domain/taxonomy"
)

func newTaxonomyCmd(root *rootOptions) *cobra.Command {
	var tree bool

	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Print the loaded taxonomy summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := loadBase(root.env)
			if err != nil {
				return err
			}
			defer func() { _ = b.logger.Sync() }()

			tax := b.classifier.Taxonomy()
			if tree {
				printTree(cmd.OutOrStdout(), tax)
				return nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(tax.Info()); err != nil {
				return fmt.Errorf("encode taxonomy info: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&tree, "tree", false, "print categories, subcategories and keyword counts as a tree")
	return cmd
}

func printTree(w io.Writer, tax *taxonomy.Taxonomy) {
	for _, cat := range tax.Categories() {
		fmt.Fprintln(w, cat.Name)
		for i, sub := range cat.Subcategories {
			branch := "├──"
			if i == len(cat.Subcategories)-1 {
				branch = "└──"
			}
			fmt.Fprintf(w, "  %s %s (%d)\n", branch, sub.Name, len(sub.Keywords))
		}
	}
}
