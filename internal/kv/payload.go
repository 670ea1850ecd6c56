package kv

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	bolt "go.etcd.io/bbolt"

	"github.com/codesearch-dev/codesearch/internal/cserr"
	"github.com/codesearch-dev/codesearch/internal/model"
)

// EncodeChunkID renders a chunk id as a big-endian 8-byte key, giving
// bbolt's ordered bucket iteration a useful key order (also relied on
// by the lexical index's postings keys).
func EncodeChunkID(id model.ChunkID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// DecodeChunkID is the inverse of EncodeChunkID.
func DecodeChunkID(key []byte) model.ChunkID {
	return model.ChunkID(binary.BigEndian.Uint64(key))
}

// PutChunk writes a chunk's payload within tx (the caller's single
// per-file write transaction, per spec.md §4.M).
func PutChunk(tx *bolt.Tx, c model.Chunk) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return err
	}
	return tx.Bucket(BucketChunks).Put(EncodeChunkID(c.ID), buf.Bytes())
}

// DeleteChunk removes a chunk's payload within tx.
func DeleteChunk(tx *bolt.Tx, id model.ChunkID) error {
	return tx.Bucket(BucketChunks).Delete(EncodeChunkID(id))
}

// GetChunk returns a single chunk's payload by id.
func (e *Environment) GetChunk(id model.ChunkID) (model.Chunk, bool, error) {
	var c model.Chunk
	found := false
	err := e.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(BucketChunks).Get(EncodeChunkID(id))
		if v == nil {
			return nil
		}
		found = true
		return gob.NewDecoder(bytes.NewReader(v)).Decode(&c)
	})
	if err != nil {
		return model.Chunk{}, false, cserr.IoError("chunk", err)
	}
	return c, found, nil
}

// GetChunks resolves a batch of chunk ids in one read transaction,
// preserving the requested order and skipping ids that no longer
// exist (e.g. a concurrent deletion raced the query).
func (e *Environment) GetChunks(ids []model.ChunkID) ([]model.Chunk, error) {
	out := make([]model.Chunk, 0, len(ids))
	err := e.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketChunks)
		for _, id := range ids {
			v := b.Get(EncodeChunkID(id))
			if v == nil {
				continue
			}
			var c model.Chunk
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&c); err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, cserr.IoError("chunk", err)
	}
	return out, nil
}

// ChunksForFile returns every chunk currently recorded for path, via
// its FileRecord's chunk id list.
func (e *Environment) ChunksForFile(path string) ([]model.Chunk, error) {
	rec, ok, err := e.GetFileRecord(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return e.GetChunks(rec.ChunkIDs)
}

// AllChunkIDs returns every chunk id currently present in the Payload
// Store, for the background consistency checker (spec.md §4.M).
func (e *Environment) AllChunkIDs() ([]model.ChunkID, error) {
	var ids []model.ChunkID
	err := e.View(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketChunks).ForEach(func(k, _ []byte) error {
			ids = append(ids, DecodeChunkID(k))
			return nil
		})
	})
	if err != nil {
		return nil, cserr.IoError("chunk ids", err)
	}
	return ids, nil
}
