// Package mcpserver exposes a node graph to MCP clients as read-only tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/jsongraph/internal/graph"
	"github.com/agentic-research/jsongraph/internal/jsonvalue"
	"github.com/agentic-research/jsongraph/internal/query"
)

const Name = "jsongraph"

// Server answers get_node, list_children and query_nodes over a graph.
type Server struct {
	g      graph.Graph
	mcp    *server.MCPServer
	logger hclog.Logger
}

func New(g graph.Graph, version string, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Server{
		g:      g,
		mcp:    server.NewMCPServer(Name, version, server.WithToolCapabilities(false)),
		logger: logger,
	}
	s.registerTools()
	return s
}

// MCP returns the underlying server, e.g. for an HTTP transport.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Serve speaks MCP over in and out until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("get_node",
		mcp.WithDescription("Fetch one node by identity, with its fields and children"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node identity")),
	), s.handleGetNode)

	s.mcp.AddTool(mcp.NewTool("list_children",
		mcp.WithDescription("List the identities linked beneath a node"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Parent node identity")),
	), s.handleListChildren)

	s.mcp.AddTool(mcp.NewTool("query_nodes",
		mcp.WithDescription("Find nodes by type and/or JSONPath over their fields"),
		mcp.WithString("type", mcp.Description("Exact node type, e.g. PostsJson")),
		mcp.WithString("path", mcp.Description("JSONPath that must select at least one value, e.g. $.tags[*]")),
	), s.handleQueryNodes)
}

// NodeView is the JSON shape of a node in tool results.
type NodeView struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Parent   string          `json:"parent,omitempty"`
	Children []string        `json:"children"`
	Digest   string          `json:"digest"`
	Fields   jsonvalue.Value `json:"fields"`
	Matches  []any           `json:"matches,omitempty"`
}

func viewOf(n *graph.Node) NodeView {
	children := n.Children
	if children == nil {
		children = []string{}
	}
	return NodeView{
		ID:       n.ID,
		Type:     n.Type,
		Parent:   n.Parent,
		Children: children,
		Digest:   n.Digest,
		Fields:   n.Fields,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleGetNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.g.GetNode(id)
	if errors.Is(err, graph.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("node %q not found", id)), nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(viewOf(n))
}

func (s *Server) handleListChildren(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	children, err := s.g.ListChildren(id)
	if err != nil {
		return nil, err
	}
	return jsonResult(children)
}

func (s *Server) handleQueryNodes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := query.Filter{
		Type: req.GetString("type", ""),
		Path: req.GetString("path", ""),
	}
	matches, err := query.Nodes(s.g, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Debug("query_nodes", "type", f.Type, "path", f.Path, "matches", len(matches))

	views := make([]NodeView, len(matches))
	for i, m := range matches {
		views[i] = viewOf(m.Node)
		views[i].Matches = m.Values
	}
	return jsonResult(views)
}
