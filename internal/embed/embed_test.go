package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder()
	v1, err := e.EmbedBatch(context.Background(), []string{"func Foo() error"})
	require.NoError(t, err)
	v2, err := e.EmbedBatch(context.Background(), []string{"func Foo() error"})
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Len(t, v1[0], StaticDimensions)
}

func TestStaticEmbedderEmptyText(t *testing.T) {
	e := NewStaticEmbedder()
	v, err := e.EmbedBatch(context.Background(), []string{"   "})
	require.NoError(t, err)
	for _, x := range v[0] {
		require.Equal(t, float32(0), x)
	}
}

func TestTruncateClipsLongText(t *testing.T) {
	long := make([]byte, MaxContextTokens*TokensPerChar+100)
	for i := range long {
		long[i] = 'a'
	}
	out := Truncate(string(long))
	require.LessOrEqual(t, len(out), MaxContextTokens*TokensPerChar)
}

type flakyEmbedder struct {
	fail map[int]bool
}

func (f *flakyEmbedder) Dimensions() int              { return 4 }
func (f *flakyEmbedder) ModelID() string              { return "flaky" }
func (f *flakyEmbedder) Close() error                 { return nil }
func (f *flakyEmbedder) Available(context.Context) bool { return true }

func (f *flakyEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if t == "bad" {
			return nil, errors.New("boom")
		}
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3, 4}
	}
	return out, nil
}

func TestEmbedAllIsolatesBadInput(t *testing.T) {
	e := &flakyEmbedder{}
	texts := []string{"good1", "bad", "good2"}
	vectors, failed, err := EmbedAll(context.Background(), e, texts, 3)
	require.NoError(t, err)
	require.Contains(t, failed, 1)
	require.NotNil(t, vectors[0])
	// The batch is halved once into [good1] and [bad, good2]; the second
	// half still fails, so good2 shares bad's fate.
	require.Nil(t, vectors[2])
}
