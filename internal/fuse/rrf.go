// Package fuse implements the Fuser/Reranker (spec.md §4.K): merging
// the Vector Index and Lexical Index's independently ranked result
// lists via Reciprocal Rank Fusion, with an optional pluggable
// cross-encoder reranking pass over the fused top-R candidates.
package fuse

import (
	"context"
	"sort"

	"github.com/codesearch-dev/codesearch/internal/model"
)

// DefaultRRFConstant is spec.md §4.K's default k.
const DefaultRRFConstant = 20

// Ranked is one ranked id from a single retrieval source.
type Ranked struct {
	ChunkID model.ChunkID
	Rank    int // 1-indexed position in that source's result list
}

// Fused is a chunk's combined RRF score.
type Fused struct {
	ChunkID model.ChunkID
	Score   float64
}

// RRF merges any number of ranked lists using Reciprocal Rank Fusion:
// score(d) = sum over lists containing d of 1/(k + rank). Ties break
// on ascending chunk id for determinism (spec.md §4.K).
func RRF(k int, lists ...[]Ranked) []Fused {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[model.ChunkID]float64)
	for _, list := range lists {
		for _, r := range list {
			scores[r.ChunkID] += 1.0 / float64(k+r.Rank)
		}
	}

	out := make([]Fused, 0, len(scores))
	for id, score := range scores {
		out = append(out, Fused{ChunkID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

// ToRanked converts an ordered id slice into Ranked entries (rank
// starting at 1).
func ToRanked(ids []model.ChunkID) []Ranked {
	out := make([]Ranked, len(ids))
	for i, id := range ids {
		out[i] = Ranked{ChunkID: id, Rank: i + 1}
	}
	return out
}

// Reranker re-scores a bounded candidate set, typically with a
// cross-encoder model, after RRF has produced a coarse ordering
// (spec.md §4.K's optional reranking stage over the top-R candidates).
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Fused, error)
}

// Candidate is what a Reranker needs to re-score one chunk.
type Candidate struct {
	ChunkID model.ChunkID
	Text    string
	Score   float64 // the RRF score being superseded
}

// NoopReranker returns candidates unchanged, in their existing RRF
// order; it is the default when no cross-encoder is configured.
type NoopReranker struct{}

func (NoopReranker) Rerank(_ context.Context, _ string, candidates []Candidate) ([]Fused, error) {
	out := make([]Fused, len(candidates))
	for i, c := range candidates {
		out[i] = Fused{ChunkID: c.ChunkID, Score: c.Score}
	}
	return out, nil
}
