// Package mcpserver implements the MCP stdio tool surface (spec.md
// §6): semantic_search, find_references, get_file_chunks,
// find_databases, and index_status, bridging AI coding agents to the
// Query Engine and Index Manager over JSON-RPC.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codesearch-dev/codesearch/internal/indexmgr"
	"github.com/codesearch-dev/codesearch/internal/query"
)

// Server is the MCP server for codesearch.
type Server struct {
	mcp      *mcp.Server
	engine   *query.Engine
	mgr      *indexmgr.Manager
	rootPath string
}

// New builds a Server wrapping engine and mgr. rootPath anchors the
// find_databases tool.
func New(name, version string, engine *query.Engine, mgr *indexmgr.Manager, rootPath string) *Server {
	s := &Server{
		engine:   engine,
		mgr:      mgr,
		rootPath: rootPath,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until the transport closes or ctx is canceled
// (spec.md §5's "implicit deadline inherited from the transport").
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Hybrid semantic + lexical search over the indexed codebase, fused by reciprocal rank and optionally reranked. Use this first for most code questions.",
	}, s.handleSemanticSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_references",
		Description: "Case-sensitive exact lookup for every chunk whose signature or content mentions the given identifier, ranked by BM25 then path.",
	}, s.handleFindReferences)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_file_chunks",
		Description: "Returns every indexed chunk of one file in start-line order. Use compact=true to omit source text and see only structure.",
	}, s.handleGetFileChunks)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_databases",
		Description: "Lists every codesearch index database that could serve this project, local and global, in resolution precedence order.",
	}, s.handleFindDatabases)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Reports whether the index is ready, building, or errored, plus chunk/file counts and the active embedding model. Check this before relying on search completeness.",
	}, s.handleIndexStatus)

	slog.Debug("mcpserver: tools registered", slog.Int("count", 5))
}
