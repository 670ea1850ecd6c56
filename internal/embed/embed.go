// Package embed implements the Embedder (spec.md §4.F): a pluggable
// batch text-to-vector contract with an Ollama HTTP adapter and a
// deterministic hash-based fallback that needs no network access.
package embed

import (
	"context"
	"math"
)

// TokensPerChar is the rough token-count estimate used for truncation
// (spec.md §4.F).
const TokensPerChar = 4

// Embedder generates vector embeddings for chunk or query text.
type Embedder interface {
	// EmbedBatch embeds multiple texts in one call. Implementations
	// decide their own internal batching; callers should already have
	// sized batches via AutoBatchSize.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the embedding vector width.
	Dimensions() int
	// ModelID is the stable identifier recorded in schema metadata and
	// used as part of the embedding cache key.
	ModelID() string
	// Available reports whether the embedder is ready to serve
	// requests (e.g. the Ollama daemon is reachable).
	Available(ctx context.Context) bool
	Close() error
}

// normalize scales v to unit length, leaving zero vectors untouched.
func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	mag := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out
}
