package indexmgr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codesearch-dev/codesearch/internal/chunk"
)

// TestDedupeByContentHashRemapsParentIdx covers a file whose first
// drafts share a content hash: draft 1 is a duplicate of draft 0 and
// gets dropped, so draft 2's ParentIdx (originally 1) must resolve to
// wherever draft 1's content now lives post-dedup, not to a stale or
// out-of-range index (spec.md §4.C's "parent links preserved").
func TestDedupeByContentHashRemapsParentIdx(t *testing.T) {
	drafts := []chunk.Draft{
		{Content: "same", ParentIdx: -1}, // 0: kept, representative of "same"
		{Content: "same", ParentIdx: -1}, // 1: dropped, duplicate of 0
		{Content: "child", ParentIdx: 1}, // 2: nested under the dropped draft
	}

	out := dedupeByContentHash(drafts)

	require.Len(t, out, 2)
	require.Equal(t, "same", out[0].Content)
	require.Equal(t, "child", out[1].Content)
	require.Equal(t, 0, out[1].ParentIdx, "child's parent link must follow the duplicate to its surviving representative")
}

// TestDedupeByContentHashDropsUnresolvableParent covers a draft whose
// parent was never kept (no draft represents its content hash),
// which should fall back to -1 (top-level) rather than resolve to an
// arbitrary index.
func TestDedupeByContentHashDropsUnresolvableParent(t *testing.T) {
	drafts := []chunk.Draft{
		{Content: "only-child", ParentIdx: 5}, // out-of-range parent reference
	}

	out := dedupeByContentHash(drafts)

	require.Len(t, out, 1)
	require.Equal(t, -1, out[0].ParentIdx)
}

func TestDedupeByContentHashPreservesUniqueDraftOrder(t *testing.T) {
	drafts := []chunk.Draft{
		{Content: "a", ParentIdx: -1},
		{Content: "b", ParentIdx: 0},
		{Content: "a", ParentIdx: -1}, // duplicate of draft 0, dropped
		{Content: "c", ParentIdx: 1},
	}

	out := dedupeByContentHash(drafts)

	require.Len(t, out, 3)
	require.Equal(t, []string{"a", "b", "c"}, contentsOf(out))
	require.Equal(t, -1, out[0].ParentIdx)
	require.Equal(t, 0, out[1].ParentIdx)
	require.Equal(t, 1, out[2].ParentIdx)
}

func contentsOf(drafts []chunk.Draft) []string {
	out := make([]string, len(drafts))
	for i, d := range drafts {
		out[i] = d.Content
	}
	return out
}
