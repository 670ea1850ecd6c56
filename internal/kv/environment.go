// Package kv implements the KV Environment (spec.md §4.J): a single
// embedded transactional store shared by the File-Meta Store, Payload
// Store and Lexical Index, backed by go.etcd.io/bbolt. bbolt gives
// codesearch the same single-writer, mmap'd B+tree model spec.md
// describes, including a real growth-on-demand knob (DB.AllocSize)
// that this package drives to emulate the map-full-then-resize cycle.
package kv

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/codesearch-dev/codesearch/internal/cserr"
)

// Bucket names for the five logical sub-databases (spec.md §4.J); the
// Lexical Index uses both postings and doclen.
var (
	BucketFileMeta = []byte("filemeta")
	BucketChunks   = []byte("chunks")
	BucketPostings = []byte("postings")
	BucketDocLen   = []byte("doclen")
	BucketMeta     = []byte("meta")
)

var allBuckets = [][]byte{BucketFileMeta, BucketChunks, BucketPostings, BucketDocLen, BucketMeta}

const maxResizeAttempts = 4

// Environment wraps a bbolt database, applying a growth-on-demand
// policy bounded by a configured ceiling, per spec.md §4.J.
type Environment struct {
	mu          sync.Mutex
	db          *bolt.DB
	path        string
	ceilingMB   int64
	maxMB       int64
}

// Open creates or opens the KV Environment at dir/kv/codesearch.db,
// creating the five buckets if absent. initialSizeMB seeds the growth
// increment; maxSizeMB bounds how far Update will grow before
// returning cserr.ErrStorageMapFull.
func Open(dir string, initialSizeMB, maxSizeMB int) (*Environment, error) {
	kvDir := filepath.Join(dir, "kv")
	if err := os.MkdirAll(kvDir, 0o755); err != nil {
		return nil, cserr.IoError(kvDir, err)
	}
	path := filepath.Join(kvDir, "codesearch.db")

	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cserr.ErrStorageCorrupted, err)
	}

	if initialSizeMB <= 0 {
		initialSizeMB = 1024
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 8192
	}
	db.AllocSize = initialSizeMB * 1024 * 1024

	env := &Environment{
		db:        db,
		path:      path,
		ceilingMB: int64(initialSizeMB),
		maxMB:     int64(maxSizeMB),
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", cserr.ErrStorageCorrupted, err)
	}

	return env, nil
}

// Close closes the underlying database.
func (e *Environment) Close() error {
	return e.db.Close()
}

// Path returns the on-disk database file path.
func (e *Environment) Path() string {
	return e.path
}

// View runs fn in a read-only transaction.
func (e *Environment) View(fn func(tx *bolt.Tx) error) error {
	return e.db.View(fn)
}

// Update runs fn in a read-write transaction, doubling the mmap growth
// increment and retrying when the database file has grown to fill its
// current ceiling (spec.md §4.J's "map full -> resize -> retry" rule).
// It gives up once the ceiling reaches maxMB, returning
// cserr.ErrStorageMapFull.
func (e *Environment) Update(fn func(tx *bolt.Tx) error) error {
	for attempt := 0; attempt < maxResizeAttempts; attempt++ {
		if e.nearCeiling() {
			if !e.grow() {
				return cserr.ErrStorageMapFull
			}
		}
		err := e.db.Update(fn)
		if err == nil {
			return nil
		}
		if !e.nearCeiling() {
			return err
		}
	}
	return cserr.ErrStorageMapFull
}

func (e *Environment) nearCeiling() bool {
	info, err := os.Stat(e.path)
	if err != nil {
		return false
	}
	ceilingBytes := e.ceilingMB * 1024 * 1024
	return info.Size() >= (ceilingBytes*9)/10
}

// grow doubles the ceiling (capped at maxMB) and applies it as the new
// mmap allocation increment. Returns false if already at the cap.
func (e *Environment) grow() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ceilingMB >= e.maxMB {
		return false
	}
	e.ceilingMB *= 2
	if e.ceilingMB > e.maxMB {
		e.ceilingMB = e.maxMB
	}
	e.db.AllocSize = int(e.ceilingMB) * 1024 * 1024
	return true
}

// Clear deletes and recreates every bucket, for a `--force` full
// rebuild (spec.md §4.M). The schema record is carried over so the
// chunk-id counter keeps counting up and ids are not reused. The
// underlying file and its current growth ceiling are left untouched.
func (e *Environment) Clear() error {
	return e.Update(func(tx *bolt.Tx) error {
		var schema []byte
		if mb := tx.Bucket(BucketMeta); mb != nil {
			if v := mb.Get(schemaKey); v != nil {
				schema = append([]byte(nil), v...)
			}
		}
		for _, b := range allBuckets {
			if err := tx.DeleteBucket(b); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		if schema != nil {
			return tx.Bucket(BucketMeta).Put(schemaKey, schema)
		}
		return nil
	})
}

// Stats exposes bloat monitoring data (spec.md §4.J).
type Stats struct {
	FileSizeBytes  int64
	CeilingMB      int64
	MaxMB          int64
	PayloadBytes   int64
	BloatRatio     float64
}

// Stat computes current storage statistics, including the bloat ratio
// (file size over live payload bytes) used by the `stats` CLI command.
func (e *Environment) Stat() (Stats, error) {
	info, err := os.Stat(e.path)
	if err != nil {
		return Stats{}, cserr.IoError(e.path, err)
	}

	var payload int64
	err = e.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketChunks)
		return b.ForEach(func(_, v []byte) error {
			payload += int64(len(v))
			return nil
		})
	})
	if err != nil {
		return Stats{}, err
	}

	ratio := 1.0
	if payload > 0 {
		ratio = float64(info.Size()) / float64(payload)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		FileSizeBytes: info.Size(),
		CeilingMB:     e.ceilingMB,
		MaxMB:         e.maxMB,
		PayloadBytes:  payload,
		BloatRatio:    ratio,
	}, nil
}
