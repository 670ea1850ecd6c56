// Package vectorindex implements the Vector Index (spec.md §4.G): an
// approximate nearest-neighbor store over (chunk id, embedding) pairs
// backed by github.com/coder/hnsw, a pure-Go HNSW graph with no CGO
// dependency.
package vectorindex

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/codesearch-dev/codesearch/internal/cserr"
	"github.com/codesearch-dev/codesearch/internal/model"
)

// Result is one nearest-neighbor hit.
type Result struct {
	ID    model.ChunkID
	Score float64 // cosine similarity in [-1, 1], higher is closer
}

// Index wraps an hnsw.Graph keyed directly by chunk id.
//
// Deletion is lazy: coder/hnsw's own Delete can corrupt the graph when
// the removed node is the last one inserted, so Delete here only marks
// the id as tombstoned. Tombstoned ids are filtered out of Search
// results and excluded from Stats().Live and AllIDs; periodic full rebuilds (triggered
// by `index --force`) are the only way to reclaim their graph space,
// matching spec.md §4.M's full-build semantics.
type Index struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dims       int
	tombstoned map[uint64]bool
	// ids tracks every key ever inserted, since coder/hnsw's Graph
	// exposes no node-enumeration API of its own; AllIDs needs this to
	// support the consistency checker (spec.md §4.M).
	ids map[uint64]bool
}

// New builds an empty Index for the given embedding dimension, using
// cosine distance (spec.md §4.G).
func New(dims int) *Index {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &Index{
		graph:      graph,
		dims:       dims,
		tombstoned: make(map[uint64]bool),
		ids:        make(map[uint64]bool),
	}
}

// Add inserts or replaces a chunk's vector.
func (x *Index) Add(id model.ChunkID, vec []float32) error {
	if len(vec) != x.dims {
		return fmt.Errorf("%w: expected %d dims, got %d", cserr.ErrVectorIndexError, x.dims, len(vec))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	key := uint64(id)
	delete(x.tombstoned, key)
	x.ids[key] = true

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	x.graph.Add(hnsw.MakeNode(key, normalized))
	return nil
}

// Delete lazily tombstones id.
func (x *Index) Delete(id model.ChunkID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tombstoned[uint64(id)] = true
}

// Search returns up to k nearest neighbors to query, excluding
// tombstoned ids. It over-fetches from the graph to compensate for
// tombstones that would otherwise shrink the result count below k.
func (x *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != x.dims {
		return nil, fmt.Errorf("%w: expected %d dims, got %d", cserr.ErrVectorIndexError, x.dims, len(query))
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	fetch := k + len(x.tombstoned)
	if fetch < k {
		fetch = k
	}
	nodes := x.graph.Search(normalized, fetch)

	out := make([]Result, 0, k)
	for _, n := range nodes {
		if x.tombstoned[n.Key] {
			continue
		}
		dist := x.graph.Distance(normalized, n.Value)
		out = append(out, Result{ID: model.ChunkID(n.Key), Score: 1 - dist})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Contains reports whether id is present and not tombstoned.
func (x *Index) Contains(id model.ChunkID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ids[uint64(id)] && !x.tombstoned[uint64(id)]
}

// AllIDs returns every live (non-tombstoned) chunk id in the index,
// for the background consistency checker (spec.md §4.M).
func (x *Index) AllIDs() []model.ChunkID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]model.ChunkID, 0, len(x.ids))
	for id := range x.ids {
		if x.tombstoned[id] {
			continue
		}
		out = append(out, model.ChunkID(id))
	}
	return out
}

// Clear resets the graph and tombstone/id sets in place, so existing
// holders of this *Index pointer (e.g. a query.Engine) remain valid
// across a full rebuild (spec.md §4.M) instead of needing to be
// re-wired to a new Index.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	x.graph = graph
	x.tombstoned = make(map[uint64]bool)
	x.ids = make(map[uint64]bool)
}

// Stats reports graph size vs. live (non-tombstoned) entries, used by
// the `stats` CLI command and the background consistency checker.
type Stats struct {
	GraphNodes int
	Tombstoned int
	Live       int
}

func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	total := x.graph.Len()
	return Stats{
		GraphNodes: total,
		Tombstoned: len(x.tombstoned),
		Live:       total - len(x.tombstoned),
	}
}

type persistedMeta struct {
	Dims       int
	Tombstoned map[uint64]bool
	IDs        map[uint64]bool
}

// Save persists the graph and tombstone set to <dir>/vectors.hnsw and
// <dir>/vectors.meta, using the teacher's atomic temp-file-then-rename
// pattern.
func (x *Index) Save(dir string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cserr.IoError(dir, err)
	}

	indexPath := filepath.Join(dir, "vectors.hnsw")
	tmpPath := indexPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return cserr.IoError(tmpPath, err)
	}
	if err := x.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return cserr.IoError(tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return cserr.IoError(tmpPath, err)
	}
	if err := os.Rename(tmpPath, indexPath); err != nil {
		return cserr.IoError(indexPath, err)
	}

	metaPath := filepath.Join(dir, "vectors.meta")
	metaTmp := metaPath + ".tmp"
	mf, err := os.Create(metaTmp)
	if err != nil {
		return cserr.IoError(metaTmp, err)
	}
	if err := gob.NewEncoder(mf).Encode(persistedMeta{Dims: x.dims, Tombstoned: x.tombstoned, IDs: x.ids}); err != nil {
		mf.Close()
		os.Remove(metaTmp)
		return cserr.IoError(metaTmp, err)
	}
	if err := mf.Close(); err != nil {
		os.Remove(metaTmp)
		return cserr.IoError(metaTmp, err)
	}
	return os.Rename(metaTmp, metaPath)
}

// Load restores an Index previously written by Save.
func Load(dir string) (*Index, error) {
	metaPath := filepath.Join(dir, "vectors.meta")
	mf, err := os.Open(metaPath)
	if err != nil {
		return nil, cserr.IoError(metaPath, err)
	}
	defer mf.Close()

	var meta persistedMeta
	if err := gob.NewDecoder(mf).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: %v", cserr.ErrVectorIndexError, err)
	}

	x := New(meta.Dims)
	x.tombstoned = meta.Tombstoned
	if x.tombstoned == nil {
		x.tombstoned = make(map[uint64]bool)
	}
	x.ids = meta.IDs
	if x.ids == nil {
		x.ids = make(map[uint64]bool)
	}

	indexPath := filepath.Join(dir, "vectors.hnsw")
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, cserr.IoError(indexPath, err)
	}
	defer f.Close()

	if err := x.graph.Import(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("%w: %v", cserr.ErrVectorIndexError, err)
	}
	return x, nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	mag := math.Sqrt(sumSquares)
	for i, x := range v {
		v[i] = float32(float64(x) / mag)
	}
}
