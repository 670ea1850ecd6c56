// Package lexical implements the Lexical Index (spec.md §4.H): a
// BM25-scored inverted index over chunk text, with its postings
// stored inside the shared KV Environment (internal/kv) rather than a
// self-contained engine, since spec.md §4.J describes the Lexical
// Index's storage as living inside the one shared environment.
package lexical

import (
	"bytes"
	"encoding/gob"
	"math"
	"sort"
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/codesearch-dev/codesearch/internal/cserr"
	"github.com/codesearch-dev/codesearch/internal/kv"
	"github.com/codesearch-dev/codesearch/internal/model"
)

const (
	k1 = 1.2
	b  = 0.75
)

// posting is one (chunk, term frequency) entry in a term's postings
// list.
type posting struct {
	ChunkID model.ChunkID
	TF      int
}

// docMeta records what IndexChunk needs to later remove a chunk from
// every term's postings list, plus its path for prefix filtering.
type docMeta struct {
	Path   string
	Length int
	Terms  []string
}

func docLenMetaKey(id model.ChunkID) []byte { return kv.EncodeChunkID(id) }

// IndexChunk tokenizes a chunk's path, signature and content and writes
// its postings within tx, the caller's single per-file write transaction.
func IndexChunk(tx *bolt.Tx, c model.Chunk) error {
	tokens := tokenize(c.Path + " " + c.Signature + " " + c.Content)
	tf := termFrequencies(tokens)

	terms := make([]string, 0, len(tf))
	for term, freq := range tf {
		terms = append(terms, term)
		if err := appendPosting(tx, term, posting{ChunkID: c.ID, TF: freq}); err != nil {
			return err
		}
	}

	meta := docMeta{Path: c.Path, Length: len(tokens), Terms: terms}
	if err := putDocMeta(tx, c.ID, meta); err != nil {
		return err
	}
	return bumpCorpusStats(tx, len(tokens), 1)
}

// DeleteChunk removes a chunk from every term's postings list and
// updates corpus statistics within tx.
func DeleteChunk(tx *bolt.Tx, id model.ChunkID) error {
	meta, ok, err := getDocMeta(tx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	for _, term := range meta.Terms {
		if err := removePosting(tx, term, id); err != nil {
			return err
		}
	}
	if err := tx.Bucket(kv.BucketDocLen).Delete(docLenMetaKey(id)); err != nil {
		return err
	}
	return bumpCorpusStats(tx, -meta.Length, -1)
}

func appendPosting(tx *bolt.Tx, term string, p posting) error {
	list, err := getPostings(tx, term)
	if err != nil {
		return err
	}
	list = append(list, p)
	return putPostings(tx, term, list)
}

func removePosting(tx *bolt.Tx, term string, id model.ChunkID) error {
	list, err := getPostings(tx, term)
	if err != nil {
		return err
	}
	filtered := list[:0:0]
	for _, p := range list {
		if p.ChunkID != id {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return tx.Bucket(kv.BucketPostings).Delete([]byte(term))
	}
	return putPostings(tx, term, filtered)
}

func getPostings(tx *bolt.Tx, term string) ([]posting, error) {
	v := tx.Bucket(kv.BucketPostings).Get([]byte(term))
	if v == nil {
		return nil, nil
	}
	var list []posting
	if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&list); err != nil {
		return nil, err
	}
	return list, nil
}

func putPostings(tx *bolt.Tx, term string, list []posting) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(list); err != nil {
		return err
	}
	return tx.Bucket(kv.BucketPostings).Put([]byte(term), buf.Bytes())
}

func getDocMeta(tx *bolt.Tx, id model.ChunkID) (docMeta, bool, error) {
	v := tx.Bucket(kv.BucketDocLen).Get(docLenMetaKey(id))
	if v == nil {
		return docMeta{}, false, nil
	}
	var meta docMeta
	if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&meta); err != nil {
		return docMeta{}, false, err
	}
	return meta, true, nil
}

func putDocMeta(tx *bolt.Tx, id model.ChunkID, meta docMeta) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(meta); err != nil {
		return err
	}
	return tx.Bucket(kv.BucketDocLen).Put(docLenMetaKey(id), buf.Bytes())
}

var corpusStatsKey = []byte("lexical:corpus")

type corpusStats struct {
	DocCount int
	TotalLen int
}

func bumpCorpusStats(tx *bolt.Tx, lenDelta, countDelta int) error {
	b := tx.Bucket(kv.BucketMeta)
	var stats corpusStats
	if v := b.Get(corpusStatsKey); v != nil {
		if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&stats); err != nil {
			return err
		}
	}
	stats.DocCount += countDelta
	stats.TotalLen += lenDelta
	if stats.DocCount < 0 {
		stats.DocCount = 0
	}
	if stats.TotalLen < 0 {
		stats.TotalLen = 0
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(stats); err != nil {
		return err
	}
	return b.Put(corpusStatsKey, buf.Bytes())
}

// Hit is one scored search result.
type Hit struct {
	ChunkID model.ChunkID
	Score   float64
}

// Search scores query against the corpus using Okapi BM25 (k1=1.2,
// b=0.75, spec.md §4.H), optionally restricted to chunks whose path
// has pathPrefix (empty disables filtering).
func Search(env *kv.Environment, query string, pathPrefix string, topK int) ([]Hit, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	scores := make(map[model.ChunkID]float64)
	err := env.View(func(tx *bolt.Tx) error {
		var stats corpusStats
		if v := tx.Bucket(kv.BucketMeta).Get(corpusStatsKey); v != nil {
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&stats); err != nil {
				return err
			}
		}
		if stats.DocCount == 0 {
			return nil
		}
		avgdl := float64(stats.TotalLen) / float64(stats.DocCount)

		seen := map[string]bool{}
		for _, term := range terms {
			if seen[term] {
				continue
			}
			seen[term] = true

			list, err := getPostings(tx, term)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				continue
			}
			idf := idf(stats.DocCount, len(list))

			for _, p := range list {
				meta, ok, err := getDocMeta(tx, p.ChunkID)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if pathPrefix != "" && !hasPrefix(meta.Path, pathPrefix) {
					continue
				}
				scores[p.ChunkID] += bm25Term(idf, p.TF, meta.Length, avgdl)
			}
		}
		return nil
	})
	if err != nil {
		return nil, cserr.IoError("lexical search", err)
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{ChunkID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// AllChunkIDs returns every chunk id with a doc-length entry, i.e.
// every chunk currently represented in the lexical index, for the
// background consistency checker (spec.md §4.M).
func AllChunkIDs(env *kv.Environment) ([]model.ChunkID, error) {
	var ids []model.ChunkID
	err := env.View(func(tx *bolt.Tx) error {
		return tx.Bucket(kv.BucketDocLen).ForEach(func(k, _ []byte) error {
			ids = append(ids, kv.DecodeChunkID(k))
			return nil
		})
	})
	if err != nil {
		return nil, cserr.IoError("lexical chunk ids", err)
	}
	return ids, nil
}

func bm25Term(idfVal float64, tf, docLen int, avgdl float64) float64 {
	num := float64(tf) * (k1 + 1)
	den := float64(tf) + k1*(1-b+b*float64(docLen)/avgdl)
	return idfVal * num / den
}

func idf(docCount, docFreq int) float64 {
	return math.Log(1 + (float64(docCount)-float64(docFreq)+0.5)/(float64(docFreq)+0.5))
}

func hasPrefix(path, prefix string) bool {
	return strings.HasPrefix(path, prefix)
}
