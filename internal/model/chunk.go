// Package model defines the data model shared by every layer of
// codesearch: the Chunk, File record, Posting entry and Schema
// metadata types from spec.md §3.
package model

import "time"

// Kind is the retrieval-unit classification from spec.md §3.
type Kind string

const (
	KindFunction    Kind = "function"
	KindMethod      Kind = "method"
	KindClass       Kind = "class"
	KindStruct      Kind = "struct"
	KindEnum        Kind = "enum"
	KindInterface   Kind = "trait" // trait/interface
	KindModule      Kind = "module"
	KindBlock       Kind = "block"
	KindTest        Kind = "test"
	KindDoc         Kind = "doc"
	KindLineWindow  Kind = "line-window"
	KindOther       Kind = "other"
)

// ChunkID is a monotonic, never-reused 64-bit identifier assigned at
// insert time (spec.md §3).
type ChunkID uint64

// Chunk is a unit of retrieval (spec.md §3).
type Chunk struct {
	ID        ChunkID
	Path      string
	StartLine int // 1-indexed, inclusive
	EndLine   int // 1-indexed, inclusive
	Kind      Kind
	Signature string // optional; empty when not applicable
	Language  string
	Content   string // exact source bytes of the span, UTF-8
	// ContentHash is SHA-256(content + model identifier), used as the
	// embedding cache key (spec.md §3, §4.E).
	ContentHash string
	// ParentID is the enclosing chunk's id, or 0 when there is none.
	// Integer-only links break potential cycles structurally
	// (spec.md §9).
	ParentID ChunkID
}

// Key returns the (path, start, end, kind, signature) uniqueness key
// required by spec.md §3's per-file chunk invariant.
func (c Chunk) Key() string {
	return c.Path + "\x00" + itoa(c.StartLine) + "\x00" + itoa(c.EndLine) + "\x00" + string(c.Kind) + "\x00" + c.Signature
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// FileRecord tracks a file's digest, mtime, size and current chunk set
// for change detection and deletion (spec.md §3).
type FileRecord struct {
	Path      string
	Digest    [32]byte // SHA-256 of content
	ModTime   time.Time
	Size      int64
	ChunkIDs  []ChunkID
}

// SchemaMeta is the singleton schema-metadata record (spec.md §3).
type SchemaMeta struct {
	ModelID         string
	Dimension       int
	TokenizerFamily string
	RRFConstant     int
	RerankTop       int
	ANNLeafSize     int
	ANNTreeCount    int
	ChunkIDCounter  ChunkID
	FormatVersion   int
	LastFullBuild   time.Time
}

// DefaultSchemaMeta returns the baseline schema for a freshly created
// database, before the first model is selected.
func DefaultSchemaMeta() SchemaMeta {
	return SchemaMeta{
		TokenizerFamily: "unicode-word",
		RRFConstant:     20,
		RerankTop:       50,
		ANNLeafSize:     32,
		ANNTreeCount:    8,
		FormatVersion:   1,
	}
}
