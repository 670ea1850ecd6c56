package mcpserver

import (
	"context"
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

	return New("codesearch", "test", engine, mgr, root)
}

func TestHandleSemanticSearchReturnsHit(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleSemanticSearch(context.Background(), nil, SemanticSearchInput{Query: "ParseConfig"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	require.Equal(t, "a.go", out.Results[0].Path)
	require.Empty(t, out.Results[0].Content)
}

func TestHandleSemanticSearchNonCompactIncludesContent(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleSemanticSearch(context.Background(), nil, SemanticSearchInput{Query: "ParseConfig", Compact: false})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	require.NotEmpty(t, out.Results[0].Content)
}

func TestHandleFindReferencesFindsExactSymbol(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleFindReferences(context.Background(), nil, FindReferencesInput{Symbol: "ParseConfig"})
	require.NoError(t, err)
	require.Len(t, out.References, 1)
	require.Equal(t, "a.go", out.References[0].Path)
}

func TestHandleGetFileChunksReturnsOrderedChunks(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleGetFileChunks(context.Background(), nil, GetFileChunksInput{Path: "a.go", Compact: true})
	require.NoError(t, err)
	require.Len(t, out.Chunks, 1)
	require.Equal(t, 1, out.Chunks[0].Start)
}

func TestHandleFindDatabasesListsLocal(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleFindDatabases(context.Background(), nil, FindDatabasesInput{})
	require.NoError(t, err)
	_ = out // root has no `.codesearch.db` on disk in this fixture; just confirm no error
}

func TestHandleIndexStatusReportsCounts(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleIndexStatus(context.Background(), nil, IndexStatusInput{})
	require.NoError(t, err)
	require.Equal(t, 1, out.TotalFiles)
	require.Equal(t, 1, out.TotalChunks)
	require.Equal(t, "ready", out.Status)
	require.True(t, out.Indexed)
}
