// Package httpserver implements the HTTP surface of `codesearch serve`
// (spec.md §6): GET /health, GET /status, POST /search. This transport
// is deliberately bare net/http — spec.md §1 places the HTTP transport
// outside the specified core, and it has no domain logic of its own
// beyond thin JSON marshaling over the Query Engine and Index Manager.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/codesearch-dev/codesearch/internal/indexmgr"
	"github.com/codesearch-dev/codesearch/internal/query"
)

// Server serves the HTTP surface over the Query Engine and Index
// Manager shared with the MCP stdio surface.
type Server struct {
	engine   *query.Engine
	mgr      *indexmgr.Manager
	rootPath string
	http     *http.Server
}

// New builds a Server bound to addr (":4444" by default).
func New(addr string, engine *query.Engine, mgr *indexmgr.Manager, rootPath string) *Server {
	s := &Server{engine: engine, mgr: mgr, rootPath: rootPath}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /search", s.handleSearch)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", s.http.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
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

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.mgr.Progress().Snapshot()
	schema, err := s.mgr.Schema()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	files, chunks, err := s.mgr.Counts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	status := snap.Status
	if status == string(indexmgr.StatusReady) && files == 0 && chunks == 0 {
		status = "not_indexed"
	} else if status == string(indexmgr.StatusIndexing) {
		status = "building"
	}

	resp := statusResponse{
		Indexed:      status == "ready",
		Status:       status,
		TotalChunks:  chunks,
		TotalFiles:   files,
		Model:        schema.ModelID,
		Dimensions:   schema.Dimension,
		DBPath:       s.mgr.DBPath(),
		ProjectPath:  s.rootPath,
		StatusMsg:    snap.Stage,
		ErrorMessage: snap.ErrorMessage,
	}
	writeJSON(w, http.StatusOK, resp)
}

type searchRequest struct {
	Query      string `json:"query"`
	Limit      int    `json:"limit"`
	Compact    bool   `json:"compact"`
	FilterPath string `json:"filter_path"`
	Mode       string `json:"mode"`
}

type searchHit struct {
	Path      string  `json:"path"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Kind      string  `json:"kind"`
	Signature string  `json:"signature,omitempty"`
	Score     float64 `json:"score"`
	Content   string  `json:"content,omitempty"`
}

type searchResponse struct {
	Results []searchHit `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 25
	}
	mode := query.Mode(req.Mode)
	if mode == "" {
		mode = query.ModeHybrid
	}

	results, err := s.engine.SemanticSearch(r.Context(), req.Query, req.Limit, req.FilterPath, mode)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := searchResponse{Results: make([]searchHit, len(results))}
	for i, r := range results {
		hit := searchHit{
			Path:      r.Chunk.Path,
			Start:     r.Chunk.StartLine,
			End:       r.Chunk.EndLine,
			Kind:      string(r.Chunk.Kind),
			Signature: r.Chunk.Signature,
			Score:     r.Score,
		}
		if !req.Compact {
			hit.Content = r.Chunk.Content
		}
		resp.Results[i] = hit
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpserver: encode response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
