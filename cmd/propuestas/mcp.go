package main

import (
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openprogramia/propuestas/internal/metrics"
	mcptransport "github.com/openprogramia/propuestas/internal/transport/mcp"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Expose the tools to an LLM over MCP stdio",
		Long: `mcp serves classify_query, expand_query, get_taxonomy_info, clear_cache,
get_cache_stats and search_political_docs on stdin/stdout. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, root.env)
			if err != nil {
				return err
			}
			defer a.Close()

			tools := mcptransport.NewTools(a.classifier, a.search, a.logger).
				WithMetrics(metrics.ToolCallsTotal, metrics.ToolCallDuration)
			s := mcptransport.NewServer(tools)

			a.logger.Info("Serving MCP over stdio", zap.String("server", mcptransport.ServerName))
			return mcpserver.ServeStdio(s, mcpserver.WithErrorLogger(zap.NewStdLog(a.logger)))
		},
	}
}
