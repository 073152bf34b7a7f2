package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/jsongraph/internal/graph"
)

var buildCmd = &cobra.Command{
	Use:   "build [source] [output.db]",
	Short: "Build a jsongraph SQLite database from a source directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]
		output := args[1]

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

		start := time.Now()
		fmt.Fprintf(cmd.OutOrStdout(), "Building %s from %s...\n", output, source)
		n, err := ingestTree(cmd.Context(), engine, fs, store)
		if err != nil {
			return err
		}
		if err := store.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents in %v.\n", n, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
