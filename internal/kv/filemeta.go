package kv

import (
	"bytes"
	"encoding/gob"

	bolt "go.etcd.io/bbolt"

	"github.com/codesearch-dev/codesearch/internal/cserr"
	"github.com/codesearch-dev/codesearch/internal/model"
)

// GetFileRecord returns the stored record for path, and ok=false if
// the file has never been indexed.
func (e *Environment) GetFileRecord(path string) (rec model.FileRecord, ok bool, err error) {
	err = e.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(BucketFileMeta).Get([]byte(path))
		if v == nil {
			return nil
		}
		ok = true
		return gob.NewDecoder(bytes.NewReader(v)).Decode(&rec)
	})
	if err != nil {
		return model.FileRecord{}, false, cserr.IoError(path, err)
	}
	return rec, ok, nil
}

// PutFileRecord writes a file's metadata record. Callers should do this
// inside the same Environment.Update transaction that writes the
// file's chunk payloads, so a crash mid-index never leaves a file
// record pointing at missing chunks.
func PutFileRecord(tx *bolt.Tx, rec model.FileRecord) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return err
	}
	return tx.Bucket(BucketFileMeta).Put([]byte(rec.Path), buf.Bytes())
}

// DeleteFileRecord removes a file's metadata record within tx.
func DeleteFileRecord(tx *bolt.Tx, path string) error {
	return tx.Bucket(BucketFileMeta).Delete([]byte(path))
}

// AllFileRecords returns every tracked file record, for consistency
// checks and full rebuilds.
func (e *Environment) AllFileRecords() ([]model.FileRecord, error) {
	var out []model.FileRecord
	err := e.View(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketFileMeta).ForEach(func(_, v []byte) error {
			var rec model.FileRecord
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, cserr.IoError("filemeta", err)
	}
	return out, nil
}
