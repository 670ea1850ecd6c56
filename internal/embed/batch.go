package embed

import (
	"context"

	"github.com/codesearch-dev/codesearch/internal/cserr"
)

// AutoBatchSize returns the default batch size for a model's
// dimension (spec.md §4.F: "default 32 for 384-d, 16 for 768-d, 8 for
// 1024-d").
func AutoBatchSize(dimensions int) int {
	switch {
	case dimensions <= 384:
		return 32
	case dimensions <= 768:
		return 16
	default:
		return 8
	}
}

// MaxContextTokens bounds how much text is sent per chunk; content
// beyond this is truncated using the TokensPerChar estimate (spec.md
// §4.F).
const MaxContextTokens = 2048

// Truncate clips text to approximately MaxContextTokens tokens.
func Truncate(text string) string {
	maxChars := MaxContextTokens * TokensPerChar
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}

// BatchResult pairs an input index with its resulting vector, so
// EmbedAll can report which inputs failed even after halve-and-retry
// gives up.
type BatchResult struct {
	Index  int
	Vector []float32
}

// EmbedAll embeds texts in batches of batchSize, applying
// cserr.RetryHalving within each batch: a failed batch is split in half
// once and each half retried. It returns one vector per input in texts'
// order; inputs whose half still failed keep a nil vector and are
// listed in failedIdx. err is always nil.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int) (vectors [][]float32, failedIdx []int, err error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	vectors = make([][]float32, len(texts))
	failed := map[int]bool{}

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := make([]string, end-start)
		for i, t := range texts[start:end] {
			batch[i] = Truncate(t)
		}

		type indexed struct {
			idx  int
			text string
		}
		items := make([]indexed, len(batch))
		for i, t := range batch {
			items[i] = indexed{idx: start + i, text: t}
		}

		leftover := cserr.RetryHalving(ctx, items, func(ctx context.Context, chunk []indexed) error {
			texts := make([]string, len(chunk))
			for i, it := range chunk {
				texts[i] = it.text
			}
			vecs, err := e.EmbedBatch(ctx, texts)
			if err != nil {
				return err
			}
			for i, it := range chunk {
				vectors[it.idx] = vecs[i]
			}
			return nil
		})
		for _, it := range leftover {
			failed[it.idx] = true
		}
	}

	for idx := range failed {
		failedIdx = append(failedIdx, idx)
	}
	return vectors, failedIdx, nil
}
