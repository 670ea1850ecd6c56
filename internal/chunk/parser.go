package chunk

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// node is a simplified, GC-friendly mirror of a tree-sitter node,
// carrying only what the symbol-finding walk needs.
type node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartRow   uint32
	EndRow     uint32
	Children   []*node
}

func (n *node) content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

func (n *node) firstChildOfType(t string) *node {
	for _, c := range n.Children {
		if c.Type == t {
			return c
		}
	}
	return nil
}

func (n *node) walk(fn func(*node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn)
	}
}

// tree is a parsed file.
type tree struct {
	Root   *node
	Source []byte
}

// parser wraps a tree-sitter parser bound to the language registry.
type parser struct {
	p        *sitter.Parser
	registry *LanguageRegistry
}

func newParser(registry *LanguageRegistry) *parser {
	return &parser{p: sitter.NewParser(), registry: registry}
}

func (p *parser) Close() {
	if p.p != nil {
		p.p.Close()
	}
}

func (p *parser) Parse(ctx context.Context, source []byte, language string) (*tree, error) {
	tsLang, ok := p.registry.TreeSitterLanguage(language)
	if !ok {
		return nil, fmt.Errorf("chunk: unsupported language %q", language)
	}
	p.p.SetLanguage(tsLang)

	tsTree, err := p.p.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("chunk: parse failed: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("chunk: parse produced nil tree")
	}

	return &tree{Root: convert(tsTree.RootNode()), Source: source}, nil
}

func convert(n *sitter.Node) *node {
	if n == nil {
		return nil
	}
	out := &node{
		Type:      n.Type(),
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		StartRow:  n.StartPoint().Row,
		EndRow:    n.EndPoint().Row,
		Children:  make([]*node, 0, n.ChildCount()),
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			out.Children = append(out.Children, convert(c))
		}
	}
	return out
}
