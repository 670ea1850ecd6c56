package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	bolt "go.etcd.io/bbolt"
	"github.com/stretchr/testify/require"

	"github.com/codesearch-dev/codesearch/internal/chunk"
	"github.com/codesearch-dev/codesearch/internal/embed"
	"github.com/codesearch-dev/codesearch/internal/embedcache"
	"github.com/codesearch-dev/codesearch/internal/indexmgr"
	"github.com/codesearch-dev/codesearch/internal/kv"
	"github.com/codesearch-dev/codesearch/internal/lexical"
	"github.com/codesearch-dev/codesearch/internal/model"
	"github.com/codesearch-dev/codesearch/internal/query"
	"github.com/codesearch-dev/codesearch/internal/vectorindex"
	"github.com/codesearch-dev/codesearch/internal/walk"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()

	env, err := kv.Open(t.TempDir(), 1, 64)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })

	embedder := embed.NewStaticEmbedder()
	vecs := vectorindex.New(embedder.Dimensions())
	cache, err := embedcache.New(t.TempDir(), 64, 32, embedder.Dimensions())
	require.NoError(t, err)
	dispatch := chunk.NewDispatcher()
	walker, err := walk.New(root)
	require.NoError(t, err)

	c := model.Chunk{
		ID: 1, Path: "a.go", StartLine: 1, EndLine: 3, Kind: model.KindFunction,
		Signature: "func ParseConfig() error",
		Content:   "func ParseConfig() error { return nil }",
	}
	vec, err := embedder.EmbedBatch(context.Background(), []string{c.Signature + " " + c.Content})
	require.NoError(t, err)
	require.NoError(t, vecs.Add(c.ID, vec[0]))
	require.NoError(t, env.Update(func(tx *bolt.Tx) error {
		if err := kv.PutChunk(tx, c); err != nil {
			return err
		}
		if err := kv.PutFileRecord(tx, model.FileRecord{Path: c.Path, ChunkIDs: []model.ChunkID{c.ID}}); err != nil {
			return err
		}
		return lexical.IndexChunk(tx, c)
	}))

	mgr := indexmgr.New(indexmgr.Config{Root: root, DBPath: root}, env, vecs, embedder, cache, dispatch, walker)
	engine := query.New(env, vecs, embedder, cache, nil)

	return New(":0", engine, mgr, root)
}

func TestHandleHealthReturnsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)
}

func TestHandleStatusReportsCounts(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)

	var resp statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, 1, resp.TotalFiles)
	require.Equal(t, 1, resp.TotalChunks)
	require.True(t, resp.Indexed)
}

func TestHandleSearchReturnsHit(t *testing.T) {
	s := newTestServer(t)
	body, err := json.Marshal(searchRequest{Query: "ParseConfig", Limit: 5})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)

	var resp searchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.Results)
	require.Equal(t, "a.go", resp.Results[0].Path)
}

func TestHandleSearchRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("POST", "/search", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(w, req)
	require.Equal(t, 400, w.Code)
}
