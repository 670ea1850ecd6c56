package chunk

import "strings"

var nameNodeTypes = map[string][]string{
	"go":         {"identifier", "field_identifier", "type_identifier"},
	"typescript": {"identifier", "type_identifier", "property_identifier"},
	"tsx":        {"identifier", "type_identifier", "property_identifier"},
	"javascript": {"identifier", "property_identifier"},
	"python":     {"identifier"},
}

// extractName finds the first direct child whose type is one of the
// language's name-bearing node types.
func extractName(n *node, source []byte, language string) string {
	candidates := nameNodeTypes[language]
	if candidates == nil {
		candidates = []string{"identifier"}
	}
	for _, child := range n.Children {
		for _, want := range candidates {
			if child.Type == want {
				return child.content(source)
			}
		}
	}
	return ""
}

// bodyNodeTypes are the node types a symbol's braced/indented body can
// take across the supported grammars, marking where its canonical
// signature stops.
var bodyNodeTypes = []string{"block", "statement_block", "class_body", "interface_body", "field_declaration_list"}

// signatureLine builds the chunk's canonical single-line signature:
// the header nodes up to the body brace, whitespace-normalized, with
// the leading keyword (func/def/class/...) and trailing brace or
// colon stripped so only name plus parameter types/return (or class
// header) remains (spec.md §3).
func signatureLine(n *node, source []byte, name string) string {
	header := normalizeWhitespace(headerText(n, source))

	if name != "" {
		if idx := strings.Index(header, name); idx >= 0 {
			header = header[idx:]
		}
	}

	header = strings.TrimRight(header, "{:")
	return strings.TrimSpace(header)
}

// headerText returns n's source text up to (excluding) its first
// direct child that looks like a body, or n's whole text if it has
// none.
func headerText(n *node, source []byte) string {
	for _, c := range n.Children {
		for _, t := range bodyNodeTypes {
			if c.Type == t {
				if c.StartByte >= n.StartByte && c.StartByte <= n.EndByte && int(c.StartByte) <= len(source) {
					return string(source[n.StartByte:c.StartByte])
				}
			}
		}
	}
	return n.content(source)
}

// normalizeWhitespace collapses runs of whitespace, including
// newlines, into single spaces and trims the ends.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
