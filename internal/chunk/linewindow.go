package chunk

import (
	"strings"

	"github.com/codesearch-dev/codesearch/internal/model"
)

// LineWindowChunk splits content into overlapping windows of
// WindowLines with a stride of StrideLines, the fallback chunker for
// languages with no tree-sitter grammar and for files where AST
// parsing produced no symbols (spec.md §4.C).
func LineWindowChunk(path, language string, content []byte) []Draft {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	var drafts []Draft
	for start := 0; start < len(lines); start += StrideLines {
		end := start + WindowLines
		if end > len(lines) {
			end = len(lines)
		}
		drafts = append(drafts, Draft{
			Path:      path,
			StartLine: start + 1,
			EndLine:   end,
			Kind:      model.KindLineWindow,
			Language:  language,
			Content:   strings.Join(lines[start:end], "\n"),
			ParentIdx: -1,
		})
		if end >= len(lines) {
			break
		}
	}
	return drafts
}
