package kv

import (
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
	"github.com/stretchr/testify/require"

	"github.com/codesearch-dev/codesearch/internal/model"
)

func openTestEnv(t *testing.T) *Environment {
	t.Helper()
	env, err := Open(t.TempDir(), 1, 64)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env
}

func TestSchemaRoundTrip(t *testing.T) {
	env := openTestEnv(t)

	meta, err := env.GetSchema()
	require.NoError(t, err)
	require.Equal(t, 20, meta.RRFConstant)

	meta.ModelID = "nomic-embed-text"
	meta.Dimension = 768
	require.NoError(t, env.PutSchema(meta))

	got, err := env.GetSchema()
	require.NoError(t, err)
	require.Equal(t, "nomic-embed-text", got.ModelID)
	require.Equal(t, 768, got.Dimension)
}

func TestNextChunkIDIsMonotonic(t *testing.T) {
	env := openTestEnv(t)

	var ids []model.ChunkID
	for i := 0; i < 5; i++ {
		id, err := env.NextChunkID()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		require.Greater(t, ids[i], ids[i-1])
	}
}

func TestChunkAndFileRecordRoundTrip(t *testing.T) {
	env := openTestEnv(t)

	c := model.Chunk{ID: 1, Path: "a.go", StartLine: 1, EndLine: 3, Kind: model.KindFunction, Content: "func a() {}"}
	rec := model.FileRecord{Path: "a.go", ModTime: time.Now(), Size: 42, ChunkIDs: []model.ChunkID{1}}

	err := env.Update(func(tx *bolt.Tx) error {
		if err := PutChunk(tx, c); err != nil {
			return err
		}
		return PutFileRecord(tx, rec)
	})
	require.NoError(t, err)

	got, found, err := env.GetChunk(1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "func a() {}", got.Content)

	gotRec, ok, err := env.GetFileRecord("a.go")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), gotRec.Size)

	chunks, err := env.ChunksForFile("a.go")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	err = env.Update(func(tx *bolt.Tx) error {
		if err := DeleteChunk(tx, 1); err != nil {
			return err
		}
		return DeleteFileRecord(tx, "a.go")
	})
	require.NoError(t, err)

	_, found, err = env.GetChunk(1)
	require.NoError(t, err)
	require.False(t, found)
}

func TestStatReportsBloatRatio(t *testing.T) {
	env := openTestEnv(t)

	err := env.Update(func(tx *bolt.Tx) error {
		return PutChunk(tx, model.Chunk{ID: 1, Content: "hello"})
	})
	require.NoError(t, err)

	stats, err := env.Stat()
	require.NoError(t, err)
	require.Greater(t, stats.FileSizeBytes, int64(0))
	require.Greater(t, stats.PayloadBytes, int64(0))
	require.Greater(t, stats.BloatRatio, 0.0)
}
