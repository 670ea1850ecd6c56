package embedcache

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTripsThroughDisk(t *testing.T) {
	c, err := New(t.TempDir(), 1, 8, 3)
	require.NoError(t, err)

	key := Key("deadbeef", "static-256")
	vec := []float32{0.1, 0.2, 0.3}
	require.NoError(t, c.Put(key, vec))

	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDeltaSlice(t, vec, got, 1e-6)
}

func TestGetMissReturnsFalse(t *testing.T) {
	c, err := New(t.TempDir(), 1, 8, 3)
	require.NoError(t, err)

	_, ok, err := c.Get(Key("nope", "static-256"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetFallsBackToDiskAfterHotEviction(t *testing.T) {
	c, err := New(t.TempDir(), 1, 8, 3)
	require.NoError(t, err)

	key := Key("abc", "static-256")
	vec := []float32{1, 2, 3}
	require.NoError(t, c.Put(key, vec))

	c.hot.Purge() // simulate hot-tier eviction

	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, vec, got)
}

func TestQueryCacheIsSeparateFromContentCache(t *testing.T) {
	c, err := New(t.TempDir(), 1, 8, 2)
	require.NoError(t, err)

	c.PutQuery("how do I parse json", []float32{9, 9})
	got, ok := c.GetQuery("how do I parse json")
	require.True(t, ok)
	require.Equal(t, []float32{9, 9}, got)

	_, ok, err = c.Get("how do I parse json")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetTreatsDimensionMismatchAsMiss(t *testing.T) {
	dir := t.TempDir()
	key := Key("deadbeef", "static-256")

	writer, err := New(dir, 1, 8, 3)
	require.NoError(t, err)
	require.NoError(t, writer.Put(key, []float32{0.1, 0.2, 0.3}))

	reader, err := New(dir, 1, 8, 768)
	require.NoError(t, err)

	_, ok, err := reader.Get(key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDiskEntryUsesDimensionHeaderLayout(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1, 8, 3)
	require.NoError(t, err)

	key := Key("deadbeef", "static-256")
	require.NoError(t, c.Put(key, []float32{0.1, 0.2, 0.3}))

	raw, err := os.ReadFile(c.diskPath(key))
	require.NoError(t, err)
	require.Len(t, raw, 4+3*4)
	require.Equal(t, uint32(3), binary.BigEndian.Uint32(raw))
}
