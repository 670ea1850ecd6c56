package chunk

import (
	"context"
	"strings"

	"github.com/codesearch-dev/codesearch/internal/model"
)

// CodeChunker produces one Draft per symbol (function, method, class,
// interface, type) found by walking the tree-sitter AST, nested symbols
// included, with ParentIdx linking each to its smallest enclosing
// symbol. It falls back to line windows for an unregistered language,
// a parse failure, or a file with no symbols; a large symbol is emitted
// whole, not split.
type CodeChunker struct {
	parser   *parser
	registry *LanguageRegistry
}

// NewCodeChunker builds a CodeChunker over the default language
// registry.
func NewCodeChunker() *CodeChunker {
	registry := DefaultRegistry()
	return &CodeChunker{parser: newParser(registry), registry: registry}
}

// Close releases the underlying tree-sitter parser.
func (c *CodeChunker) Close() {
	c.parser.Close()
}

// Chunk implements Chunker.
func (c *CodeChunker) Chunk(path, language string, content []byte) ([]Draft, error) {
	if len(content) == 0 {
		return nil, nil
	}
	if _, ok := c.registry.ByName(language); !ok {
		return LineWindowChunk(path, language, content), nil
	}

	t, err := c.parser.Parse(context.Background(), content, language)
	if err != nil {
		return LineWindowChunk(path, language, content), nil
	}

	cfg, _ := c.registry.ByName(language)
	drafts := c.walkSymbols(t, cfg, path, language)
	if len(drafts) == 0 {
		return LineWindowChunk(path, language, content), nil
	}
	return drafts, nil
}

// symbolSpan is a symbol node paired with the index of its enclosing
// symbol in the accumulated drafts slice (-1 if top-level).
type symbolSpan struct {
	n         *node
	kind      model.Kind
	parentIdx int
}

func (c *CodeChunker) walkSymbols(t *tree, cfg *LanguageConfig, path, language string) []Draft {
	var spans []symbolSpan
	var stack []int // indices into spans, innermost last

	t.Root.walk(func(n *node) bool {
		if kind, ok := kindForNodeType(cfg, n.Type); ok {
			parentIdx := -1
			if len(stack) > 0 {
				parentIdx = stack[len(stack)-1]
			}
			spans = append(spans, symbolSpan{n: n, kind: kind, parentIdx: parentIdx})
			stack = append(stack, len(spans)-1)
			return true
		}
		return true
	})
	// The walk above never pops the stack (node.walk doesn't signal
	// descent/ascent), so parent resolution instead happens by nesting
	// range: a later symbol whose byte range sits inside an earlier
	// symbol's range is its child. Recompute parentIdx that way.
	for i := range spans {
		spans[i].parentIdx = -1
		for j := range spans {
			if i == j {
				continue
			}
			if spans[j].n.StartByte <= spans[i].n.StartByte && spans[i].n.EndByte <= spans[j].n.EndByte {
				if spans[i].parentIdx == -1 || spans[j].n.EndByte-spans[j].n.StartByte < spans[spans[i].parentIdx].n.EndByte-spans[spans[i].parentIdx].n.StartByte {
					spans[i].parentIdx = j
				}
			}
		}
	}

	drafts := make([]Draft, 0, len(spans))
	for _, s := range spans {
		name := extractName(s.n, t.Source, language)
		sig := signatureLine(s.n, t.Source, name)
		if name != "" && !strings.Contains(sig, name) {
			sig = strings.TrimSpace(sig + " " + name)
		}
		drafts = append(drafts, Draft{
			Path:      path,
			StartLine: int(s.n.StartRow) + 1,
			EndLine:   int(s.n.EndRow) + 1,
			Kind:      s.kind,
			Signature: sig,
			Language:  language,
			Content:   s.n.content(t.Source),
			ParentIdx: s.parentIdx,
		})
	}
	return drafts
}
