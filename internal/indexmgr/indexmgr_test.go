package indexmgr

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codesearch-dev/codesearch/internal/chunk"
	"github.com/codesearch-dev/codesearch/internal/embed"
	"github.com/codesearch-dev/codesearch/internal/embedcache"
	"github.com/codesearch-dev/codesearch/internal/kv"
	"github.com/codesearch-dev/codesearch/internal/model"
	"github.com/codesearch-dev/codesearch/internal/vectorindex"
	"github.com/codesearch-dev/codesearch/internal/walk"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()

	env, err := kv.Open(filepath.Join(root, ".codesearch.db"), 16, 256)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })

	embedder := embed.NewStaticEmbedder()
	vectors := vectorindex.New(embedder.Dimensions())

	cache, err := embedcache.New(filepath.Join(root, ".codesearch.db", "cache"), 16, 16, embedder.Dimensions())
	require.NoError(t, err)

	dispatch := chunk.NewDispatcher()
	t.Cleanup(dispatch.Close)

	walker, err := walk.New(root)
	require.NoError(t, err)

	mgr := New(Config{Root: root}, env, vectors, embedder, cache, dispatch, walker)
	return mgr, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestIndexFileAddsChunksAndIsIdempotentWhenUnchanged(t *testing.T) {
	mgr, root := newTestManager(t)
	writeFile(t, root, "a.py", "def foo():\n    return 1\n")

	require.NoError(t, mgr.IndexFile(context.Background(), "a.py"))

	rec, ok, err := mgr.env.GetFileRecord("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, rec.ChunkIDs)

	firstIDs := append([]int{}, idsAsInts(rec.ChunkIDs)...)

	// Re-indexing an unchanged file must not mint new chunk ids.
	require.NoError(t, mgr.IndexFile(context.Background(), "a.py"))
	rec2, _, err := mgr.env.GetFileRecord("a.py")
	require.NoError(t, err)
	require.Equal(t, firstIDs, idsAsInts(rec2.ChunkIDs))
}

func TestIndexFileSkipsUnchangedContentDespiteMtimeChange(t *testing.T) {
	mgr, root := newTestManager(t)
	writeFile(t, root, "a.py", "def foo():\n    return 1\n")
	require.NoError(t, mgr.IndexFile(context.Background(), "a.py"))

	rec, _, err := mgr.env.GetFileRecord("a.py")
	require.NoError(t, err)
	firstIDs := append([]int{}, idsAsInts(rec.ChunkIDs)...)

	// Touch the file with identical content, as a git checkout or a
	// save-without-edit would: mtime changes, the SHA-256 doesn't.
	later := rec.ModTime.Add(time.Hour)
	abs := filepath.Join(root, "a.py")
	require.NoError(t, os.Chtimes(abs, later, later))

	require.NoError(t, mgr.IndexFile(context.Background(), "a.py"))
	rec2, _, err := mgr.env.GetFileRecord("a.py")
	require.NoError(t, err)
	require.Equal(t, firstIDs, idsAsInts(rec2.ChunkIDs))
	require.True(t, rec.ModTime.Equal(rec2.ModTime), "skipped re-index must not touch the stored file record")
}

func TestIndexFileReindexesOnModification(t *testing.T) {
	mgr, root := newTestManager(t)
	writeFile(t, root, "a.py", "x = 1\n")
	require.NoError(t, mgr.IndexFile(context.Background(), "a.py"))

	rec, _, err := mgr.env.GetFileRecord("a.py")
	require.NoError(t, err)
	oldIDs := rec.ChunkIDs

	writeFile(t, root, "a.py", "x = 1\ny = 2\nz = 3\n")
	require.NoError(t, mgr.IndexFile(context.Background(), "a.py"))

	rec2, _, err := mgr.env.GetFileRecord("a.py")
	require.NoError(t, err)
	require.NotEqual(t, idsAsInts(oldIDs), idsAsInts(rec2.ChunkIDs))

	for _, id := range oldIDs {
		_, found, err := mgr.env.GetChunk(id)
		require.NoError(t, err)
		require.False(t, found, "stale chunk from the old version must be purged")
	}
}

func TestIndexFileOnMissingPathDeletes(t *testing.T) {
	mgr, root := newTestManager(t)
	writeFile(t, root, "a.py", "x = 1\n")
	require.NoError(t, mgr.IndexFile(context.Background(), "a.py"))

	require.NoError(t, os.Remove(filepath.Join(root, "a.py")))
	require.NoError(t, mgr.IndexFile(context.Background(), "a.py"))

	_, ok, err := mgr.env.GetFileRecord("a.py")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeletePathIsNoopForUnknownFile(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.DeletePath("never/indexed.py"))
}

func TestTickAppliesBranchChangedDeletePrecedence(t *testing.T) {
	mgr, root := newTestManager(t)
	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "b.py", "y = 2\n")

	mgr.EnqueueModify("a.py")
	mgr.EnqueueModify("b.py")
	require.NoError(t, mgr.Tick(context.Background()))

	_, okA, _ := mgr.env.GetFileRecord("a.py")
	_, okB, _ := mgr.env.GetFileRecord("b.py")
	require.True(t, okA)
	require.True(t, okB)

	// Remove b.py from disk, enqueue both a branch-changed event and a
	// stale modify for the now-gone file in the same tick.
	require.NoError(t, os.Remove(filepath.Join(root, "b.py")))
	mgr.EnqueueBranchChanged()
	mgr.EnqueueModify("b.py")
	require.NoError(t, mgr.Tick(context.Background()))

	_, okB2, _ := mgr.env.GetFileRecord("b.py")
	require.False(t, okB2, "branch-changed refresh should reconcile the deleted file")
}

func TestFullBuildIndexesWholeTreeAndIsConsistent(t *testing.T) {
	mgr, root := newTestManager(t)
	writeFile(t, root, "a.py", "def foo():\n    return 1\n")
	writeFile(t, root, "sub/b.py", "def bar():\n    return 2\n")

	require.NoError(t, mgr.FullBuild(context.Background()))

	records, err := mgr.env.AllFileRecords()
	require.NoError(t, err)
	require.Len(t, records, 2)

	checker := NewConsistencyChecker(mgr)
	result, err := checker.Check(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Inconsistencies)

	ok, err := checker.QuickCheck(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func idsAsInts(ids []model.ChunkID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
