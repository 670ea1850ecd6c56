package kv

import (
	"bytes"
	"encoding/gob"

	bolt "go.etcd.io/bbolt"

	"github.com/codesearch-dev/codesearch/internal/cserr"
	"github.com/codesearch-dev/codesearch/internal/model"
)

var schemaKey = []byte("schema")

// GetSchema reads the singleton schema metadata record, returning a
// fresh model.DefaultSchemaMeta() if none has been written yet.
func (e *Environment) GetSchema() (model.SchemaMeta, error) {
	var meta model.SchemaMeta
	found := false
	err := e.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(BucketMeta).Get(schemaKey)
		if v == nil {
			return nil
		}
		found = true
		return gob.NewDecoder(bytes.NewReader(v)).Decode(&meta)
	})
	if err != nil {
		return model.SchemaMeta{}, cserr.IoError("schema", err)
	}
	if !found {
		return model.DefaultSchemaMeta(), nil
	}
	return meta, nil
}

// PutSchema writes the schema metadata record.
func (e *Environment) PutSchema(meta model.SchemaMeta) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(meta); err != nil {
		return cserr.IoError("schema", err)
	}
	return e.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketMeta).Put(schemaKey, buf.Bytes())
	})
}

// NextChunkID atomically increments and returns the next chunk id, per
// spec.md §3's monotonic never-reused identifier rule.
func (e *Environment) NextChunkID() (model.ChunkID, error) {
	var next model.ChunkID
	err := e.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketMeta)
		v := b.Get(schemaKey)
		var meta model.SchemaMeta
		if v != nil {
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&meta); err != nil {
				return err
			}
		} else {
			meta = model.DefaultSchemaMeta()
		}
		meta.ChunkIDCounter++
		next = meta.ChunkIDCounter

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(meta); err != nil {
			return err
		}
		return b.Put(schemaKey, buf.Bytes())
	})
	if err != nil {
		return 0, cserr.IoError("schema", err)
	}
	return next, nil
}
