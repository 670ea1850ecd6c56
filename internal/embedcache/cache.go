// Package embedcache implements the three-layer Embedding Cache
// (spec.md §4.E): a hot in-process LRU, a content-addressed on-disk
// cache guarded by per-key file locks, and a small query-embedding
// LRU for repeated search queries.
package embedcache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codesearch-dev/codesearch/internal/cserr"
)

const bytesPerFloat32 = 4

// MaxDiskEntries bounds the persistent disk cache (spec.md §4.E:
// "~200k entries (~300 MB)"). Prune evicts the oldest-accessed files
// once the cache exceeds it.
const MaxDiskEntries = 200_000

// DefaultRoot returns the persistent cache's root directory,
// ~/.codesearch/embedding_cache, shared across every repository on the
// machine since entries are content-addressed by chunk text and model
// identifier, not by repository (spec.md §4.E).
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codesearch", "embedding_cache"), nil
}

// ModelDir returns the model-scoped subdirectory of root a Cache for
// modelID should use, slugifying modelID for filesystem safety.
func ModelDir(root, modelID string) string {
	return filepath.Join(root, slugifyModel(modelID))
}

func slugifyModel(modelID string) string {
	r := strings.NewReplacer("/", "-", ":", "-", " ", "-")
	s := r.Replace(modelID)
	if s == "" {
		return "unknown"
	}
	return s
}

// Cache is the combined hot/disk/query embedding cache.
type Cache struct {
	hot     *lru.Cache[string, []float32]
	query   *lru.Cache[string, []float32]
	diskDir string
	dim     int // active model's vector width; 0 skips the dimension check (admin-only uses)
}

// New builds a Cache rooted at diskDir. maxMemoryMB sizes the hot LRU
// (estimated from a typical 768-dimension vector); queryCacheN bounds
// the separate query-embedding cache. dim is the active embedder's
// vector width, used by Get to reject cross-model disk entries rather
// than returning a wrong-length vector (spec.md §4.E); pass 0 for
// uses that never call Get (cache stats/clear).
func New(diskDir string, maxMemoryMB, queryCacheN, dim int) (*Cache, error) {
	if err := os.MkdirAll(diskDir, 0o755); err != nil {
		return nil, cserr.IoError(diskDir, err)
	}

	entrySize := 768 * bytesPerFloat32
	hotEntries := (maxMemoryMB * 1024 * 1024) / entrySize
	if hotEntries < 64 {
		hotEntries = 64
	}
	hot, err := lru.New[string, []float32](hotEntries)
	if err != nil {
		return nil, err
	}
	if queryCacheN <= 0 {
		queryCacheN = 128
	}
	query, err := lru.New[string, []float32](queryCacheN)
	if err != nil {
		return nil, err
	}

	return &Cache{hot: hot, query: query, diskDir: diskDir, dim: dim}, nil
}

// Key combines a chunk's content hash with the active model id, per
// spec.md §4.E.
func Key(contentHash, modelID string) string {
	sum := sha256.Sum256([]byte(contentHash + "\x00" + modelID))
	return hex.EncodeToString(sum[:])
}

// Get looks up a vector by cache key, checking the hot LRU first and
// falling back to the on-disk cache (populating the hot LRU on a disk
// hit). A hit whose dimension doesn't match the active model's is
// treated as a miss rather than returned (spec.md §4.E), which is how
// a disk entry left behind by a previous, differently-dimensioned
// model is skipped instead of corrupting a query.
func (c *Cache) Get(key string) ([]float32, bool, error) {
	if v, ok := c.hot.Get(key); ok {
		if !c.dimOK(v) {
			return nil, false, nil
		}
		return v, true, nil
	}

	v, ok, err := c.readDisk(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if !c.dimOK(v) {
		return nil, false, nil
	}
	c.hot.Add(key, v)
	return v, true, nil
}

func (c *Cache) dimOK(v []float32) bool {
	return c.dim <= 0 || len(v) == c.dim
}

// Put stores a vector under key in both the hot LRU and the on-disk
// cache.
func (c *Cache) Put(key string, vec []float32) error {
	c.hot.Add(key, vec)
	return c.writeDisk(key, vec)
}

// GetQuery and PutQuery cache query-text embeddings, distinct from the
// chunk content cache since queries rarely repeat exactly but can
// within a session (e.g. an agent re-running the same search).
func (c *Cache) GetQuery(key string) ([]float32, bool) {
	return c.query.Get(key)
}

func (c *Cache) PutQuery(key string, vec []float32) {
	c.query.Add(key, vec)
}

// DiskUsage reports the number of entries and total bytes in this
// Cache's on-disk store.
func (c *Cache) DiskUsage() (entries int, bytes int64, err error) {
	err = filepath.Walk(c.diskDir, func(path string, info os.FileInfo, werr error) error {
		if werr != nil || info == nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".bin") {
			return nil
		}
		entries++
		bytes += info.Size()
		return nil
	})
	return entries, bytes, err
}

// Prune evicts the least-recently-accessed disk entries once the
// cache holds more than maxEntries, per spec.md §4.E's "oldest-access
// eviction". Access recency is the file modification time: a Get that
// reads an entry from disk re-touches the file, while a hit served from
// the in-memory LRU does not.
func (c *Cache) Prune(maxEntries int) error {
	if maxEntries <= 0 {
		maxEntries = MaxDiskEntries
	}

	type entry struct {
		path    string
		modTime int64
	}
	var entries []entry
	err := filepath.Walk(c.diskDir, func(path string, info os.FileInfo, werr error) error {
		if werr != nil || info == nil || info.IsDir() || !strings.HasSuffix(path, ".bin") {
			return nil
		}
		entries = append(entries, entry{path: path, modTime: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return err
	}
	if len(entries) <= maxEntries {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime < entries[j].modTime })
	evict := len(entries) - maxEntries
	for _, e := range entries[:evict] {
		_ = os.Remove(e.path)
	}
	return nil
}

// Clear removes every entry from the hot LRU, query LRU, and on-disk
// store under this Cache's diskDir.
func (c *Cache) Clear() error {
	c.hot.Purge()
	c.query.Purge()
	entries, err := os.ReadDir(c.diskDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return cserr.IoError(c.diskDir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.diskDir, e.Name())); err != nil {
			return cserr.IoError(c.diskDir, err)
		}
	}
	return nil
}

// diskPath returns ~/.codesearch/embedding_cache/<model-slug>/<key>.bin
// (the Cache's diskDir is already model-scoped by ModelDir), per
// spec.md §6's literal layout.
func (c *Cache) diskPath(key string) string {
	return filepath.Join(c.diskDir, key+".bin")
}

func (c *Cache) readDisk(key string) ([]float32, bool, error) {
	path := c.diskPath(key)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, cserr.IoError(path, err)
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, false, cserr.IoError(path, err)
	}
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return vec, true, nil
}

func (c *Cache) writeDisk(key string, vec []float32) error {
	path := c.diskPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cserr.IoError(path, err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return cserr.IoError(path, err)
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encodeVector(vec), 0o644); err != nil {
		return cserr.IoError(path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return cserr.IoError(path, err)
	}
	return nil
}

// encodeVector serializes vec per spec.md §6's on-disk file layout: a
// 4-byte big-endian dimension header followed by dimension × f32
// little-endian.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4+len(vec)*bytesPerFloat32)
	binary.BigEndian.PutUint32(buf, uint32(len(vec)))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("embedcache: truncated entry (%d bytes)", len(raw))
	}
	dim := binary.BigEndian.Uint32(raw)
	want := 4 + int(dim)*bytesPerFloat32
	if len(raw) != want {
		return nil, fmt.Errorf("embedcache: dimension header says %d floats but entry is %d bytes", dim, len(raw))
	}

	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4+i*4:]))
	}
	return vec, nil
}
