// Package query selects nodes of a graph by type and by JSONPath over their
// fields.
package query

import (
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/agentic-research/jsongraph/internal/graph"
)

// Match is a node together with the values the expression selected in it.
type Match struct {
	Node   *graph.Node
	Values []any
}

// Filter narrows Nodes. Zero fields match everything.
type Filter struct {
	Type string // Exact node type
	Path string // JSONPath evaluated against the node's fields, e.g. "$.tags[*]"
}

// Expr is a compiled JSONPath expression.
type Expr struct {
	src string
	x   jp.Expr
}

// Compile parses a JSONPath expression.
func Compile(selector string) (*Expr, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	return &Expr{src: selector, x: x}, nil
}

func (e *Expr) String() string { return e.src }

// Eval returns the values selected in n's fields.
func (e *Expr) Eval(n *graph.Node) []any {
	return e.x.Get(n.Fields.Interface())
}

// Nodes returns the nodes of g that pass f, in registration order. With a
// path, a node passes only if the path selects at least one value.
func Nodes(g graph.Graph, f Filter) ([]Match, error) {
	var expr *Expr
	if f.Path != "" {
		var err error
		if expr, err = Compile(f.Path); err != nil {
			return nil, err
		}
	}

	nodes, err := g.Nodes()
	if err != nil {
		return nil, err
	}

	var out []Match
	for _, n := range nodes {
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		if expr == nil {
			out = append(out, Match{Node: n})
			continue
		}
		if vals := expr.Eval(n); len(vals) > 0 {
			out = append(out, Match{Node: n, Values: vals})
		}
	}
	return out, nil
}

// Types counts nodes per type, in order of first appearance.
func Types(g graph.Graph) ([]string, map[string]int, error) {
	nodes, err := g.Nodes()
	if err != nil {
		return nil, nil, err
	}
	var order []string
	counts := make(map[string]int)
	for _, n := range nodes {
		if _, ok := counts[n.Type]; !ok {
			order = append(order, n.Type)
		}
		counts[n.Type]++
	}
	return order, counts, nil
}
