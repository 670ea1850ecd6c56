package query

import (
	"context"
	"testing"

	bolt "go.etcd.io/bbolt"
	"github.com/stretchr/testify/require"

	"github.com/codesearch-dev/codesearch/internal/embed"
	"github.com/codesearch-dev/codesearch/internal/embedcache"
	"github.com/codesearch-dev/codesearch/internal/kv"
	"github.com/codesearch-dev/codesearch/internal/lexical"
	"github.com/codesearch-dev/codesearch/internal/model"
	"github.com/codesearch-dev/codesearch/internal/vectorindex"
)

func newTestEngine(t *testing.T) (*Engine, *kv.Environment) {
	t.Helper()
	env, err := kv.Open(t.TempDir(), 1, 64)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })

	embedder := embed.NewStaticEmbedder()
	vecs := vectorindex.New(embedder.Dimensions())
	cache, err := embedcache.New(t.TempDir(), 64, 32, embedder.Dimensions())
	require.NoError(t, err)

	return New(env, vecs, embedder, cache, nil), env
}

func seedChunk(t *testing.T, env *kv.Environment, vecs *vectorindex.Index, embedder embed.Embedder, c model.Chunk) {
	t.Helper()
	vec, err := embedder.EmbedBatch(context.Background(), []string{c.Signature + " " + c.Content})
	require.NoError(t, err)
	require.NoError(t, vecs.Add(c.ID, vec[0]))

	require.NoError(t, env.Update(func(tx *bolt.Tx) error {
		if err := kv.PutChunk(tx, c); err != nil {
			return err
		}
		return lexical.IndexChunk(tx, c)
	}))
}

func TestSemanticSearchFindsRelevantChunk(t *testing.T) {
	env, err := kv.Open(t.TempDir(), 1, 64)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })

	embedder := embed.NewStaticEmbedder()
	vecs := vectorindex.New(embedder.Dimensions())
	cache, err := embedcache.New(t.TempDir(), 64, 32, embedder.Dimensions())
	require.NoError(t, err)
	engine := New(env, vecs, embedder, cache, nil)

	seedChunk(t, env, vecs, embedder, model.Chunk{
		ID: 1, Path: "a.go", Signature: "func ParseConfig() error",
		Content: "func ParseConfig() error { return nil }",
	})
	seedChunk(t, env, vecs, embedder, model.Chunk{
		ID: 2, Path: "b.go", Signature: "func Unrelated() int",
		Content: "func Unrelated() int { return 42 }",
	})

	results, err := engine.SemanticSearch(context.Background(), "ParseConfig", 5, "", ModeHybrid)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, model.ChunkID(1), results[0].Chunk.ID)
}

func TestSemanticSearchRejectsEmptyQuery(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.SemanticSearch(context.Background(), "   ", 5, "", ModeHybrid)
	require.Error(t, err)
}

func TestFindReferencesIsCaseSensitive(t *testing.T) {
	env, err := kv.Open(t.TempDir(), 1, 64)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })

	embedder := embed.NewStaticEmbedder()
	vecs := vectorindex.New(embedder.Dimensions())
	cache, err := embedcache.New(t.TempDir(), 64, 32, embedder.Dimensions())
	require.NoError(t, err)
	engine := New(env, vecs, embedder, cache, nil)

	seedChunk(t, env, vecs, embedder, model.Chunk{
		ID: 1, Path: "a.go", Signature: "func Widget()",
		Content: "func Widget() {}",
	})

	results, err := engine.FindReferences("Widget", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = engine.FindReferences("widget_not_present", 5)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestGetFileChunksOrdersByStartLineAndHonorsCompact(t *testing.T) {
	env, err := kv.Open(t.TempDir(), 1, 64)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })

	embedder := embed.NewStaticEmbedder()
	vecs := vectorindex.New(embedder.Dimensions())
	cache, err := embedcache.New(t.TempDir(), 64, 32, embedder.Dimensions())
	require.NoError(t, err)
	engine := New(env, vecs, embedder, cache, nil)

	rec := model.FileRecord{Path: "a.go", ChunkIDs: []model.ChunkID{2, 1}}
	chunks := []model.Chunk{
		{ID: 1, Path: "a.go", StartLine: 1, EndLine: 3, Content: "first"},
		{ID: 2, Path: "a.go", StartLine: 10, EndLine: 12, Content: "second"},
	}
	require.NoError(t, env.Update(func(tx *bolt.Tx) error {
		for _, c := range chunks {
			if err := kv.PutChunk(tx, c); err != nil {
				return err
			}
		}
		return kv.PutFileRecord(tx, rec)
	}))

	out, err := engine.GetFileChunks("a.go", false)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, model.ChunkID(1), out[0].ID)
	require.Equal(t, model.ChunkID(2), out[1].ID)
	require.Equal(t, "first", out[0].Content)

	compact, err := engine.GetFileChunks("a.go", true)
	require.NoError(t, err)
	require.Empty(t, compact[0].Content)
}
