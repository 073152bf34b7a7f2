package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/jsongraph/internal/graph"
	"github.com/agentic-research/jsongraph/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve [source]",
	Short: "Ingest a source directory in memory and serve the graph over MCP (stdio)",
	Long: `Ingest a source directory in memory and serve the graph over MCP (stdio).

On SIGHUP the directory is ingested again into a fresh graph, which replaces
the served one once it is complete.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := loadMemoryGraph(ctx, args[0])
		if err != nil {
			return err
		}
		live := graph.NewHotSwapGraph(store)

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					next, err := loadMemoryGraph(ctx, args[0])
					if err != nil {
						logger.Error("reload failed; keeping current graph", "error", err)
						continue
					}
					live.Swap(next)
				}
			}
		}()

		// stdout carries the protocol; logs go to stderr.
		srv := mcpserver.New(live, Version, logger.Named("mcp"))
		return srv.Serve(ctx, cmd.InOrStdin(), os.Stdout)
	},
}

func loadMemoryGraph(ctx context.Context, source string) (*graph.MemoryStore, error) {
	store := graph.NewMemoryStore()
	engine, fs, err := newEngine(source, store)
	if err != nil {
		return nil, err
	}
	n, err := ingestTree(ctx, engine, fs, store)
	if err != nil {
		return nil, err
	}
	logger.Info("graph ready", "documents", n, "root", fs.Root())
	return store, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
