package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIndexCmd(root *rootOptions) *cobra.Command {
	var dims int

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create the proposal collection or index if it does not exist",
		Long: `index prepares the retrieval backend for the ingestion job: the vector
collection with payload indexes on every filterable field (qdrant) or the
FT index over the collection's HASH keys (redis). Existing collections are
left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, root.env)
			if err != nil {
				return err
			}
			defer a.Close()

			if dims <= 0 {
				dims = a.cfg.Embedding.Dimensions
			}
			if err := a.repo.EnsureSchema(ctx, dims); err != nil {
				return err
			}
			a.logger.Info("Collection ready",
				zap.String("collection", a.cfg.Retrieval.Collection),
				zap.Int("vector_dim", dims),
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&dims, "dims", 0, "vector dimension (defaults to embedding.dimensions)")
	return cmd
}
