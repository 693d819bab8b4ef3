package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openprogramia/propuestas/internal/domain/classification"
)

type classifyOutput struct {
	Query          string                `json:"query"`
	Classification classification.Result `json:"classification"`
	ExpandedQuery  string                `json:"expanded_query,omitempty"`
}

func newClassifyCmd(root *rootOptions) *cobra.Command {
	var (
		queryType string
		expand    bool
	)

	cmd := &cobra.Command{
		Use:   "classify <query>",
		Short: "Classify a query against the taxonomy without touching the backends",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBase(root.env)
			if err != nil {
				return err
			}
			defer func() { _ = b.logger.Sync() }()

			qt, err := classification.ParseQueryType(queryType)
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			result := b.classifier.Classify(cmd.Context(), query, qt)
			out := classifyOutput{Query: query, Classification: result}
			if expand {
				out.ExpandedQuery = b.classifier.Expand(query, result)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("encode classification: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&queryType, "type", "", "query type: general, specific or comparative (detected when empty)")
	cmd.Flags().BoolVar(&expand, "expand", false, "also print the keyword-expanded query")
	return cmd
}
