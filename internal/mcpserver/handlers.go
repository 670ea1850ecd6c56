package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codesearch-dev/codesearch/internal/indexmgr"
	"github.com/codesearch-dev/codesearch/internal/query"
	"github.com/codesearch-dev/codesearch/internal/repo"
)

// SemanticSearchInput is semantic_search's input schema (spec.md §6).
type SemanticSearchInput struct {
	Query      string `json:"query" jsonschema:"the search query to execute"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 25"`
	Compact    bool   `json:"compact,omitempty" jsonschema:"omit chunk content from results, default true"`
	FilterPath string `json:"filter_path,omitempty" jsonschema:"restrict results to paths with this prefix"`
	Mode       string `json:"mode,omitempty" jsonschema:"hybrid, vector, or rerank; default hybrid"`
}

// SemanticSearchOutput is semantic_search's output schema.
type SemanticSearchOutput struct {
	Results []SearchResult `json:"results"`
}

// SearchResult is one ranked hit.
type SearchResult struct {
	Path      string  `json:"path"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Kind      string  `json:"kind"`
	Signature string  `json:"signature,omitempty"`
	Score     float64 `json:"score"`
	Content   string  `json:"content,omitempty"`
}

func (s *Server) handleSemanticSearch(ctx context.Context, _ *mcp.CallToolRequest, input SemanticSearchInput) (*mcp.CallToolResult, SemanticSearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 25
	}
	mode := query.Mode(input.Mode)
	if mode == "" {
		mode = query.ModeHybrid
	}

	results, err := s.engine.SemanticSearch(ctx, input.Query, limit, input.FilterPath, mode)
	if err != nil {
		return nil, SemanticSearchOutput{}, err
	}

	compact := input.Compact
	out := SemanticSearchOutput{Results: make([]SearchResult, len(results))}
	for i, r := range results {
		sr := SearchResult{
			Path:      r.Chunk.Path,
			Start:     r.Chunk.StartLine,
			End:       r.Chunk.EndLine,
			Kind:      string(r.Chunk.Kind),
			Signature: r.Chunk.Signature,
			Score:     r.Score,
		}
		if !compact {
			sr.Content = r.Chunk.Content
		}
		out.Results[i] = sr
	}
	return nil, out, nil
}

// FindReferencesInput is find_references's input schema.
type FindReferencesInput struct {
	Symbol string `json:"symbol" jsonschema:"the identifier to look up"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 50"`
}

// FindReferencesOutput is find_references's output schema.
type FindReferencesOutput struct {
	References []ReferenceResult `json:"references"`
}

// ReferenceResult is one reference hit.
type ReferenceResult struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Context string `json:"context,omitempty"`
}

func (s *Server) handleFindReferences(ctx context.Context, _ *mcp.CallToolRequest, input FindReferencesInput) (*mcp.CallToolResult, FindReferencesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	results, err := s.engine.FindReferences(input.Symbol, limit)
	if err != nil {
		return nil, FindReferencesOutput{}, err
	}

	out := FindReferencesOutput{References: make([]ReferenceResult, len(results))}
	for i, r := range results {
		out.References[i] = ReferenceResult{
			Path:    r.Chunk.Path,
			Line:    r.Chunk.StartLine,
			Context: r.Chunk.Signature,
		}
	}
	return nil, out, nil
}

// GetFileChunksInput is get_file_chunks's input schema.
type GetFileChunksInput struct {
	Path    string `json:"path" jsonschema:"repository-relative file path"`
	Compact bool   `json:"compact,omitempty" jsonschema:"omit chunk content, default true"`
}

// GetFileChunksOutput is get_file_chunks's output schema.
type GetFileChunksOutput struct {
	Chunks []SearchResult `json:"chunks"`
}

func (s *Server) handleGetFileChunks(ctx context.Context, _ *mcp.CallToolRequest, input GetFileChunksInput) (*mcp.CallToolResult, GetFileChunksOutput, error) {
	chunks, err := s.engine.GetFileChunks(input.Path, input.Compact)
	if err != nil {
		return nil, GetFileChunksOutput{}, err
	}

	out := GetFileChunksOutput{Chunks: make([]SearchResult, len(chunks))}
	for i, c := range chunks {
		out.Chunks[i] = SearchResult{
			Path:      c.Path,
			Start:     c.StartLine,
			End:       c.EndLine,
			Kind:      string(c.Kind),
			Signature: c.Signature,
			Content:   c.Content,
		}
	}
	return nil, out, nil
}

// FindDatabasesInput is find_databases's (parameter-less) input schema.
type FindDatabasesInput struct{}

// FindDatabasesOutput is find_databases's output schema.
type FindDatabasesOutput struct {
	Databases []DatabaseEntry `json:"databases"`
}

// DatabaseEntry describes one discovered index database.
type DatabaseEntry struct {
	Path  string `json:"path"`
	Scope string `json:"scope"` // "local" or "global"
}

func (s *Server) handleFindDatabases(ctx context.Context, _ *mcp.CallToolRequest, _ FindDatabasesInput) (*mcp.CallToolResult, FindDatabasesOutput, error) {
	locations, err := repo.FindDatabases(s.rootPath)
	if err != nil {
		return nil, FindDatabasesOutput{}, err
	}

	out := FindDatabasesOutput{Databases: make([]DatabaseEntry, len(locations))}
	for i, loc := range locations {
		scope := "local"
		if loc.Global {
			scope = "global"
		}
		out.Databases[i] = DatabaseEntry{Path: loc.DBPath, Scope: scope}
	}
	return nil, out, nil
}

// IndexStatusInput is index_status's (parameter-less) input schema.
type IndexStatusInput struct{}

// IndexStatusOutput mirrors spec.md §6's index_status response shape.
type IndexStatusOutput struct {
	Indexed      bool   `json:"indexed"`
	Status       string `json:"status"`
	TotalChunks  int    `json:"total_chunks"`
	TotalFiles   int    `json:"total_files"`
	Model        string `json:"model"`
	Dimensions   int    `json:"dimensions"`
	DBPath       string `json:"db_path"`
	ProjectPath  string `json:"project_path"`
	StatusMsg    string `json:"status_message"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (*mcp.CallToolResult, IndexStatusOutput, error) {
	snap := s.mgr.Progress().Snapshot()
	schema, err := s.mgr.Schema()
	if err != nil {
		return nil, IndexStatusOutput{}, err
	}
	files, chunks, err := s.mgr.Counts()
	if err != nil {
		return nil, IndexStatusOutput{}, err
	}

	status := snap.Status
	if status == string(indexmgr.StatusReady) && files == 0 && chunks == 0 {
		status = "not_indexed"
	} else if status == string(indexmgr.StatusIndexing) {
		status = "building"
	}

	out := IndexStatusOutput{
		Indexed:     status == "ready",
		Status:      status,
		TotalChunks: chunks,
		TotalFiles:  files,
		Model:       schema.ModelID,
		Dimensions:  schema.Dimension,
		DBPath:      s.mgr.DBPath(),
		ProjectPath: s.rootPath,
		StatusMsg:   snap.Stage,
	}
	if snap.ErrorMessage != "" {
		out.ErrorMessage = snap.ErrorMessage
	}
	return nil, out, nil
}
