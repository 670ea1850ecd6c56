// Package chunk implements the Chunker (spec.md §4.C): AST-aware
// splitting of source files into retrieval units via tree-sitter, with
// a line-window fallback for unsupported languages and a heading-aware
// splitter for Markdown documentation.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/codesearch-dev/codesearch/internal/model"
)

// Window and stride for the line-window fallback chunker, spec.md §4.C.
const (
	WindowLines = 40
	StrideLines = 30
)

// Draft is a chunk before it has been assigned a persistent id by the
// File-Meta/Payload store. ParentIdx indexes back into the slice a
// Chunker returns (-1 when the draft has no enclosing chunk); the
// caller resolves ParentIdx into a real model.ChunkID once ids have
// been allocated.
type Draft struct {
	Path      string
	StartLine int
	EndLine   int
	Kind      model.Kind
	Signature string
	Language  string
	Content   string
	ParentIdx int
}

// ContentHash returns the SHA-256 hex digest of the draft's content,
// the stable part of the embedding cache key (spec.md §3, §4.E); the
// embedder combines it with the active model id before use.
func (d Draft) ContentHash() string {
	sum := sha256.Sum256([]byte(d.Content))
	return hex.EncodeToString(sum[:])
}

// Chunker splits one file's content into Drafts.
type Chunker interface {
	Chunk(path, language string, content []byte) ([]Draft, error)
}
