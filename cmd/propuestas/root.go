package main

import (
	"github.com/spf13/cobra"

	"github.com/openprogramia/propuestas/internal/config"
	"github.com/openprogramia/propuestas/internal/version"
)

type rootOptions struct {
	env string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "propuestas",
		Short: "Query understanding and retrieval over presidential government programs",
		Long: `propuestas classifies citizen questions against a taxonomy of public policy
topics and retrieves the matching proposals from each candidate's government
program, served over HTTP or as MCP tools for an LLM.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "config environment: loads config/<env>.yaml")

	cmd.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newClassifyCmd(opts),
		newTaxonomyCmd(opts),
		newIndexCmd(opts),
	)
	return cmd
}
