// Package query implements the Query Engine (spec.md §4.L): exactly
// three public operations — SemanticSearch, FindReferences, and
// GetFileChunks — composing the Embedder, Embedding Cache, Vector
// Index, Lexical Index, and Fuser/Reranker directly. No query
// decomposition, classification, or synonym expansion is added; the
// spec enumerates the operation surface exhaustively.
package query

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/codesearch-dev/codesearch/internal/cserr"
	"github.com/codesearch-dev/codesearch/internal/embed"
	"github.com/codesearch-dev/codesearch/internal/embedcache"
	"github.com/codesearch-dev/codesearch/internal/fuse"
	"github.com/codesearch-dev/codesearch/internal/kv"
	"github.com/codesearch-dev/codesearch/internal/lexical"
	"github.com/codesearch-dev/codesearch/internal/model"
	"github.com/codesearch-dev/codesearch/internal/vectorindex"
)

// Mode selects which retrieval sources SemanticSearch consults.
type Mode string

const (
	ModeHybrid Mode = "hybrid"
	ModeVector Mode = "vector"
	ModeRerank Mode = "rerank"
)

// DefaultVectorTopK and DefaultLexicalTopK bound how many candidates
// each source contributes to fusion before limit is applied.
const (
	DefaultVectorTopK  = 50
	DefaultLexicalTopK = 50
	DefaultRerankTop   = 50
)

// Result is one scored, resolved chunk returned by the Query Engine.
type Result struct {
	Chunk model.Chunk
	Score float64
}

// Engine composes the retrieval stack behind the three public
// operations. It holds no mutable state of its own; all state lives
// in the KV Environment, Vector Index, and caches it is given.
type Engine struct {
	env      *kv.Environment
	vectors  *vectorindex.Index
	embedder embed.Embedder
	cache    *embedcache.Cache
	reranker fuse.Reranker
}

// New builds a Query Engine over the given storage and model
// components. reranker may be nil, in which case fuse.NoopReranker is
// used (spec.md §4.K's default).
func New(env *kv.Environment, vectors *vectorindex.Index, embedder embed.Embedder, cache *embedcache.Cache, reranker fuse.Reranker) *Engine {
	if reranker == nil {
		reranker = fuse.NoopReranker{}
	}
	return &Engine{env: env, vectors: vectors, embedder: embedder, cache: cache, reranker: reranker}
}

// Options overrides SemanticSearch's fusion tuning for a single call.
// A zero value leaves the Engine's defaults (DefaultRerankTop, fuse's
// DefaultRRFConstant) untouched; it's the `search --rrf-k`/
// `--rerank-top` CLI flags' escape hatch into a call that otherwise
// has no per-query tuning knobs.
type Options struct {
	RRFConstant int
	RerankTop   int
}

// SemanticSearch embeds query (consulting the query cache), issues a
// vector top-K and, unless mode is ModeVector, a lexical top-K; fuses
// both rankings via RRF; optionally reranks the fused top-R; applies
// filterPath; and returns up to limit results (spec.md §4.L).
func (e *Engine) SemanticSearch(ctx context.Context, query string, limit int, filterPath string, mode Mode, opts ...Options) ([]Result, error) {
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	if strings.TrimSpace(query) == "" {
		return nil, cserr.ErrInvalidQuery
	}
	if limit <= 0 {
		limit = 10
	}
	if mode == "" {
		mode = ModeHybrid
	}

	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	vecHits, err := e.vectors.Search(vec, DefaultVectorTopK)
	if err != nil {
		return nil, errors.Join(cserr.ErrIndexUnavailable, err)
	}
	lists := [][]fuse.Ranked{fuse.ToRanked(idsFromVector(vecHits))}

	if mode != ModeVector {
		lexHits, err := lexical.Search(e.env, query, "", DefaultLexicalTopK)
		if err != nil {
			return nil, errors.Join(cserr.ErrIndexUnavailable, err)
		}
		lists = append(lists, fuse.ToRanked(idsFromLexical(lexHits)))
	}

	fused := fuse.RRF(opt.RRFConstant, lists...)

	rerankTop := DefaultRerankTop
	if opt.RerankTop > 0 {
		rerankTop = opt.RerankTop
	}
	if rerankTop > len(fused) {
		rerankTop = len(fused)
	}
	if mode == ModeRerank && rerankTop > 0 {
		fused, err = e.rerank(ctx, query, fused[:rerankTop])
		if err != nil {
			return nil, err
		}
	}

	results, err := e.resolve(fused)
	if err != nil {
		return nil, err
	}

	if filterPath != "" {
		filtered := results[:0:0]
		for _, r := range results {
			if strings.HasPrefix(r.Chunk.Path, filterPath) {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// FindReferences performs a case-sensitive identifier-exact lexical
// lookup over signature and content, ordered by BM25 score then by
// path (spec.md §4.L). "Exact" means the symbol's lowercase form must
// appear as one of the chunk's indexed tokens; the lexical tokenizer
// already case-folds, so case-sensitivity is enforced here by a
// case-sensitive substring check of the symbol against the chunk's own
// signature/content rather than relying on token matching alone.
func (e *Engine) FindReferences(symbol string, limit int) ([]Result, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, cserr.ErrInvalidQuery
	}
	if limit <= 0 {
		limit = 10
	}

	hits, err := lexical.Search(e.env, symbol, "", 0)
	if err != nil {
		return nil, errors.Join(cserr.ErrIndexUnavailable, err)
	}

	ids := make([]model.ChunkID, len(hits))
	scoreByID := make(map[model.ChunkID]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
		scoreByID[h.ChunkID] = h.Score
	}
	chunks, err := e.env.GetChunks(ids)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		if !strings.Contains(c.Signature, symbol) && !strings.Contains(c.Content, symbol) {
			continue
		}
		results = append(results, Result{Chunk: c, Score: scoreByID[c.ID]})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Path < results[j].Chunk.Path
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetFileChunks returns all chunks recorded for path in start-line
// order. When compact is true, the Engine clears each chunk's Content
// before returning (spec.md §4.L's "compact omits full content"); the
// full payloads are still read, since the Payload Store has no
// partial-read mode.
func (e *Engine) GetFileChunks(path string, compact bool) ([]model.Chunk, error) {
	chunks, err := e.env.ChunksForFile(path)
	if err != nil {
		return nil, err
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].StartLine < chunks[j].StartLine
	})
	if compact {
		for i := range chunks {
			chunks[i].Content = ""
		}
	}
	return chunks, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := embedcache.Key(query, e.embedder.ModelID())
	if v, ok := e.cache.GetQuery(key); ok {
		return v, nil
	}

	vecs, err := e.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, cserr.EmbeddingFailed(1, err)
	}
	if len(vecs) != 1 {
		return nil, cserr.EmbeddingFailed(1, errors.New("embedder returned unexpected vector count"))
	}

	e.cache.PutQuery(key, vecs[0])
	return vecs[0], nil
}

func (e *Engine) rerank(ctx context.Context, query string, fused []fuse.Fused) ([]fuse.Fused, error) {
	ids := make([]model.ChunkID, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}
	chunks, err := e.env.GetChunks(ids)
	if err != nil {
		return nil, err
	}
	textByID := make(map[model.ChunkID]string, len(chunks))
	for _, c := range chunks {
		textByID[c.ID] = c.Content
	}

	candidates := make([]fuse.Candidate, 0, len(fused))
	for _, f := range fused {
		candidates = append(candidates, fuse.Candidate{ChunkID: f.ChunkID, Text: textByID[f.ChunkID], Score: f.Score})
	}

	reranked, err := e.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	sort.Slice(reranked, func(i, j int) bool {
		if reranked[i].Score != reranked[j].Score {
			return reranked[i].Score > reranked[j].Score
		}
		return reranked[i].ChunkID < reranked[j].ChunkID
	})
	return reranked, nil
}

// resolve fetches chunk payloads for fused results in ranked order.
// Per spec.md §4.I, a missing payload for a present vector/posting
// entry is a consistency violation to skip, not fail on.
func (e *Engine) resolve(fused []fuse.Fused) ([]Result, error) {
	ids := make([]model.ChunkID, len(fused))
	scoreByID := make(map[model.ChunkID]float64, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
		scoreByID[f.ChunkID] = f.Score
	}

	chunks, err := e.env.GetChunks(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[model.ChunkID]model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]Result, 0, len(fused))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		results = append(results, Result{Chunk: c, Score: scoreByID[id]})
	}
	return results, nil
}

func idsFromVector(hits []vectorindex.Result) []model.ChunkID {
	ids := make([]model.ChunkID, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

func idsFromLexical(hits []lexical.Hit) []model.ChunkID {
	ids := make([]model.ChunkID, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	return ids
}
