package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/agentic-research/jsongraph/internal/graph"
	"github.com/agentic-research/jsongraph/internal/jsonvalue"
	"github.com/agentic-research/jsongraph/internal/query"
)

var (
	inspectType   string
	inspectQuery  string
	inspectFormat string
	inspectTypes  bool
)

const maxFieldWidth = 60

var inspectCmd = &cobra.Command{
	Use:   "inspect [db]",
	Short: "List the nodes of a jsongraph database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return err
		}
		store, err := graph.OpenSQLiteStore(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		w := cmd.OutOrStdout()
		if inspectTypes {
			return renderTypes(w, store)
		}

		matches, err := query.Nodes(store, query.Filter{Type: inspectType, Path: inspectQuery})
		if err != nil {
			return err
		}
		switch inspectFormat {
		case "json":
			return renderNodesJSON(w, matches)
		case "table", "":
			renderNodesTable(w, matches)
			return nil
		default:
			return fmt.Errorf("unknown format %q (want table or json)", inspectFormat)
		}
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectType, "type", "t", "", "Only nodes of this type")
	inspectCmd.Flags().StringVarP(&inspectQuery, "query", "q", "", "JSONPath that must select a value in the node's fields")
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "o", "table", "Output format: table or json")
	inspectCmd.Flags().BoolVar(&inspectTypes, "types", false, "Count nodes per type instead of listing them")
	rootCmd.AddCommand(inspectCmd)
}

func renderTypes(w io.Writer, g graph.Graph) error {
	order, counts, err := query.Types(g)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"TYPE", "NODES"})
	for _, typ := range order {
		t.AppendRow(table.Row{typ, counts[typ]})
	}
	t.Render()
	return nil
}

func renderNodesTable(w io.Writer, matches []query.Match) {
	if len(matches) == 0 {
		_, _ = fmt.Fprintln(w, "(0 nodes)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "TYPE", "PARENT", "CHILDREN", "DIGEST", "FIELDS"})
	for _, m := range matches {
		n := m.Node
		fields := n.Fields.String()
		if m.Values != nil {
			b, _ := json.Marshal(m.Values)
			fields = string(b)
		}
		t.AppendRow(table.Row{n.ID, n.Type, n.Parent, len(n.Children), shortDigest(n.Digest), truncate(fields, maxFieldWidth)})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d nodes)\n", len(matches))
}

type nodeJSON struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Parent   string          `json:"parent,omitempty"`
	Children []string        `json:"children,omitempty"`
	Digest   string          `json:"digest"`
	Fields   jsonvalue.Value `json:"fields"`
	Matches  []any           `json:"matches,omitempty"`
}

func renderNodesJSON(w io.Writer, matches []query.Match) error {
	out := make([]nodeJSON, len(matches))
	for i, m := range matches {
		out[i] = nodeJSON{
			ID:       m.Node.ID,
			Type:     m.Node.Type,
			Parent:   m.Node.Parent,
			Children: m.Node.Children,
			Digest:   m.Node.Digest,
			Fields:   m.Node.Fields,
			Matches:  m.Values,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// shortDigest keeps the algorithm and the first 12 hex digits.
func shortDigest(d string) string {
	algo, hex, ok := strings.Cut(d, ":")
	if !ok || len(hex) <= 12 {
		return d
	}
	return algo + ":" + hex[:12]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
