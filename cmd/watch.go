package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/jsongraph/api"
	"github.com/agentic-research/jsongraph/internal/graph"
	"github.com/agentic-research/jsongraph/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [source] [output.db]",
	Short: "Build a database, then keep it in sync with changes under source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]
		output := args[1]

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_ = os.Remove(output) // Overwrite
		store, err := graph.OpenSQLiteStore(output)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		engine, fs, err := newEngine(source, store)
		if err != nil {
			return err
		}
		n, err := ingestTree(ctx, engine, fs, store)
		if err != nil {
			return err
		}
		if err := store.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents; watching %s\n", n, fs.Root())

		w := &watch.Watcher{
			Root:     fs.Root(),
			Engine:   engine,
			Pruner:   store,
			IDs:      store,
			Debounce: watchDebounce,
			Logger:   logger.Named("watch"),
			Synced: func(doc *api.SourceDocument, err error) {
				if err != nil {
					return // already logged by the watcher
				}
				if err := store.Flush(); err != nil {
					logger.Error("flush failed", "path", doc.Path, "error", err)
				}
			},
		}
		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before a changed file is re-ingested")
	rootCmd.AddCommand(watchCmd)
}
