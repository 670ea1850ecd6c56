package chunk

import (
	"strings"

	"github.com/codesearch-dev/codesearch/internal/model"
)

// MarkdownChunker splits documentation into sections anchored at each
// heading, nesting subsections under their enclosing heading via
// ParentIdx (spec.md §9's supplemented documentation chunking).
type MarkdownChunker struct{}

// Chunk implements Chunker.
func (MarkdownChunker) Chunk(path, language string, content []byte) ([]Draft, error) {
	lines := strings.Split(string(content), "\n")
	if strings.TrimSpace(string(content)) == "" {
		return nil, nil
	}

	type open struct {
		level int
		idx   int
	}
	var stack []open
	var drafts []Draft

	flush := func(idx int, endLine int) {
		if idx < 0 || idx >= len(drafts) {
			return
		}
		drafts[idx].EndLine = endLine
	}

	sectionStart := -1
	for i, line := range lines {
		level := headingLevel(line)
		if level == 0 {
			continue
		}

		if sectionStart >= 0 {
			flush(len(drafts)-1, i)
		}

		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		parentIdx := -1
		if len(stack) > 0 {
			parentIdx = stack[len(stack)-1].idx
		}

		heading := strings.TrimSpace(strings.TrimLeft(line, "# "))
		drafts = append(drafts, Draft{
			Path:      path,
			StartLine: i + 1,
			EndLine:   len(lines),
			Kind:      model.KindDoc,
			Signature: heading,
			Language:  language,
			ParentIdx: parentIdx,
		})
		stack = append(stack, open{level: level, idx: len(drafts) - 1})
		sectionStart = i
	}

	if len(drafts) == 0 {
		// No headings at all: treat the whole file as one doc chunk.
		return []Draft{{
			Path:      path,
			StartLine: 1,
			EndLine:   len(lines),
			Kind:      model.KindDoc,
			Language:  language,
			Content:   string(content),
			ParentIdx: -1,
		}}, nil
	}

	for i, d := range drafts {
		start := d.StartLine - 1
		end := d.EndLine
		if end > len(lines) {
			end = len(lines)
		}
		if end < start {
			end = start
		}
		drafts[i].Content = strings.Join(lines[start:end], "\n")
	}
	return drafts, nil
}

// headingLevel returns the ATX heading level (1-6) of line, or 0 if it
// is not a heading.
func headingLevel(line string) int {
	trimmed := strings.TrimLeft(line, " ")
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0
	}
	if level >= len(trimmed) || trimmed[level] != ' ' {
		return 0
	}
	return level
}
