package indexmgr

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/codesearch-dev/codesearch/internal/chunk"
	"github.com/codesearch-dev/codesearch/internal/cserr"
	"github.com/codesearch-dev/codesearch/internal/embed"
	"github.com/codesearch-dev/codesearch/internal/embedcache"
	"github.com/codesearch-dev/codesearch/internal/kv"
	"github.com/codesearch-dev/codesearch/internal/lexical"
	"github.com/codesearch-dev/codesearch/internal/model"
	"github.com/codesearch-dev/codesearch/internal/walk"
)

// filePlan is the CPU-heavy (chunk + embed) output of one file, ready
// for the single writer task to commit in a KV transaction (spec.md
// §5: "CPU-heavy stages... run on a bounded worker pool... One
// dedicated writer task owns all mutating transactions").
type filePlan struct {
	path       string
	skip       bool // content unchanged; nothing to commit
	hadOld     bool
	oldIDs     []model.ChunkID
	chunks     []model.Chunk
	vectors    [][]float32
	embeddable []bool
	rec        model.FileRecord
}

// IndexFile runs the single-file pipeline (spec.md §4.M): chunk, embed
// (consulting the cache), then write payload/vector/lexical/file-meta
// updates atomically within one KV write transaction. path is
// repository-root-relative.
func (m *Manager) IndexFile(ctx context.Context, path string) error {
	plan, err := m.planFile(ctx, path)
	if err != nil {
		if err == errFileGone {
			return m.DeletePath(path)
		}
		return err
	}
	if plan.skip {
		return nil
	}
	if err := m.commitPlan(plan); err != nil {
		return err
	}
	m.progress.IncrementChunks(len(plan.chunks))
	return nil
}

var errFileGone = cserr.IoError("", os.ErrNotExist)

// planFile performs the CPU-heavy stages only: reading, chunking, and
// embedding. It performs no writes, so it is safe to call from
// multiple goroutines concurrently (spec.md §5's bounded worker pool).
func (m *Manager) planFile(ctx context.Context, path string) (filePlan, error) {
	abs := filepath.Join(m.cfg.Root, path)
	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return filePlan{}, errFileGone
		}
		return filePlan{}, cserr.IoError(abs, err)
	}

	digest := sha256.Sum256(content)
	old, hadOld, err := m.env.GetFileRecord(path)
	if err != nil {
		return filePlan{}, err
	}
	if hadOld && old.Digest == digest {
		return filePlan{skip: true}, nil // spec.md §4.D: SHA-256 alone is the change signal
	}

	language := walk.LanguageFor(path)
	drafts, err := m.dispatch.Chunk(path, language, content)
	if err != nil {
		return filePlan{}, cserr.ChunkingFailed(path, err)
	}
	drafts = dedupeByContentHash(drafts)

	chunks, err := m.materializeChunks(path, language, drafts)
	if err != nil {
		return filePlan{}, err
	}

	vectors, embeddable, err := m.embedChunks(ctx, chunks)
	if err != nil {
		return filePlan{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return filePlan{}, cserr.IoError(abs, err)
	}

	return filePlan{
		path:       path,
		hadOld:     hadOld,
		oldIDs:     old.ChunkIDs,
		chunks:     chunks,
		vectors:    vectors,
		embeddable: embeddable,
		rec: model.FileRecord{
			Path:     path,
			Digest:   digest,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
			ChunkIDs: chunkIDsOf(chunks),
		},
	}, nil
}

// commitPlan writes a prepared filePlan atomically within one KV
// write transaction; it must only be called from the single writer
// task (spec.md §5).
func (m *Manager) commitPlan(plan filePlan) error {
	return m.env.Update(func(tx *bolt.Tx) error {
		if plan.hadOld {
			if err := m.purgeChunks(tx, plan.oldIDs); err != nil {
				return err
			}
		}
		for i, c := range plan.chunks {
			if err := kv.PutChunk(tx, c); err != nil {
				return err
			}
			if err := lexical.IndexChunk(tx, c); err != nil {
				return err
			}
			if plan.embeddable[i] {
				if err := m.vectors.Add(c.ID, plan.vectors[i]); err != nil {
					return err
				}
			}
		}
		return kv.PutFileRecord(tx, plan.rec)
	})
}

// DeletePath removes every chunk id associated with path from the
// vector, lexical, and payload stores, then from the file-meta store
// (spec.md §4.M). Deleting an unknown path is a no-op (spec.md §4.N).
func (m *Manager) DeletePath(path string) error {
	rec, ok, err := m.env.GetFileRecord(path)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	return m.env.Update(func(tx *bolt.Tx) error {
		if err := m.purgeChunks(tx, rec.ChunkIDs); err != nil {
			return err
		}
		return kv.DeleteFileRecord(tx, path)
	})
}

// purgeChunks removes ids from the vector, lexical, and payload
// stores within tx. Vector deletion is lazy (vectorindex.Index.Delete)
// so it is safe to call outside the KV write lock's rollback scope.
func (m *Manager) purgeChunks(tx *bolt.Tx, ids []model.ChunkID) error {
	for _, id := range ids {
		m.vectors.Delete(id)
		if err := lexical.DeleteChunk(tx, id); err != nil {
			return err
		}
		if err := kv.DeleteChunk(tx, id); err != nil {
			return err
		}
	}
	return nil
}

// materializeChunks assigns monotonic chunk ids to each draft and
// builds the full model.Chunk records, resolving parent links from
// draft index to assigned id.
func (m *Manager) materializeChunks(path, language string, drafts []chunk.Draft) ([]model.Chunk, error) {
	ids := make([]model.ChunkID, len(drafts))
	for i := range drafts {
		id, err := m.env.NextChunkID()
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	chunks := make([]model.Chunk, len(drafts))
	for i, d := range drafts {
		var parent model.ChunkID
		if d.ParentIdx >= 0 && d.ParentIdx < len(ids) {
			parent = ids[d.ParentIdx]
		}
		chunks[i] = model.Chunk{
			ID:          ids[i],
			Path:        path,
			StartLine:   d.StartLine,
			EndLine:     d.EndLine,
			Kind:        d.Kind,
			Signature:   d.Signature,
			Language:    language,
			Content:     d.Content,
			ContentHash: d.ContentHash(),
			ParentID:    parent,
		}
	}
	return chunks, nil
}

// embedChunks resolves each chunk's embedding via the three-layer
// cache (spec.md §4.E), sending only misses to the embedder in batches
// of the configured batch size (spec.md §4.F). embeddable[i] is false for chunks whose
// embedding failed even after the halve-and-retry policy; those
// chunks remain in the payload/lexical stores but are omitted from
// the vector index.
func (m *Manager) embedChunks(ctx context.Context, chunks []model.Chunk) (vectors [][]float32, embeddable []bool, err error) {
	vectors = make([][]float32, len(chunks))
	embeddable = make([]bool, len(chunks))

	var missIdx []int
	var missTexts []string
	for i, c := range chunks {
		key := embedcache.Key(c.ContentHash, m.embedder.ModelID())
		if v, ok, cerr := m.cache.Get(key); cerr == nil && ok {
			vectors[i] = v
			embeddable[i] = true
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, c.Signature+"\n"+c.Content)
	}
	if len(missTexts) == 0 {
		return vectors, embeddable, nil
	}

	batchSize := m.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = embed.AutoBatchSize(m.embedder.Dimensions())
	}

	results, failedIdx, embedErr := embed.EmbedAll(ctx, m.embedder, missTexts, batchSize)
	if embedErr != nil {
		return nil, nil, embedErr
	}
	failed := make(map[int]bool, len(failedIdx))
	for _, i := range failedIdx {
		failed[i] = true
	}

	for localI, globalI := range missIdx {
		if failed[localI] {
			continue
		}
		vectors[globalI] = results[localI]
		embeddable[globalI] = true
		key := embedcache.Key(chunks[globalI].ContentHash, m.embedder.ModelID())
		_ = m.cache.Put(key, results[localI])
	}
	return vectors, embeddable, nil
}

func chunkIDsOf(chunks []model.Chunk) []model.ChunkID {
	ids := make([]model.ChunkID, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

// dedupeByContentHash merges chunks sharing a content hash within a
// single file's draft set, keeping only the first (spec.md §4.C).
// ParentIdx values reference the pre-dedup drafts slice, so every kept
// draft's ParentIdx is remapped to the compacted slice, resolving
// through a dropped parent to the draft that now represents its
// content hash rather than leaving a stale or out-of-range index.
func dedupeByContentHash(drafts []chunk.Draft) []chunk.Draft {
	seen := make(map[string]int, len(drafts))  // content hash -> representative original index
	representative := make([]int, len(drafts)) // original index -> representative original index
	var keptOldIdx []int                       // original indices of kept drafts, in order

	for i, d := range drafts {
		h := d.ContentHash()
		if first, ok := seen[h]; ok {
			representative[i] = first
			continue
		}
		seen[h] = i
		representative[i] = i
		keptOldIdx = append(keptOldIdx, i)
	}

	newIndexOf := make(map[int]int, len(keptOldIdx))
	for newIdx, oldIdx := range keptOldIdx {
		newIndexOf[oldIdx] = newIdx
	}

	out := make([]chunk.Draft, 0, len(keptOldIdx))
	for _, oldIdx := range keptOldIdx {
		d := drafts[oldIdx]
		if d.ParentIdx >= 0 {
			if d.ParentIdx >= len(representative) {
				d.ParentIdx = -1
			} else if newIdx, ok := newIndexOf[representative[d.ParentIdx]]; ok {
				d.ParentIdx = newIdx
			} else {
				d.ParentIdx = -1
			}
		}
		out = append(out, d)
	}
	return out
}
