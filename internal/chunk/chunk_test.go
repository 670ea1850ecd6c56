package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codesearch-dev/codesearch/internal/model"
)

const goSample = `package sample

import "fmt"

// Greet prints a greeting.
func Greet(name string) {
	fmt.Println("hello " + name)
}

type Greeter struct{}

func (g *Greeter) Greet(name string) string {
	return "hi " + name
}
`

func TestCodeChunkerFindsGoSymbols(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	drafts, err := d.Chunk("sample.go", "go", []byte(goSample))
	require.NoError(t, err)
	require.NotEmpty(t, drafts)

	var kinds []model.Kind
	for _, dr := range drafts {
		kinds = append(kinds, dr.Kind)
	}
	require.Contains(t, kinds, model.KindFunction)
	require.Contains(t, kinds, model.KindMethod)
}

func TestCodeChunkerBuildsCanonicalSignature(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	drafts, err := d.Chunk("a.py", "python", []byte("def foo():\n    return 1\n"))
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, model.KindFunction, drafts[0].Kind)
	require.Equal(t, "foo()", drafts[0].Signature)
	require.Equal(t, 1, drafts[0].StartLine)
	require.Equal(t, 2, drafts[0].EndLine)
}

func TestCodeChunkerStripsKeywordAndBraceForGo(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	drafts, err := d.Chunk("sample.go", "go", []byte(goSample))
	require.NoError(t, err)

	var fn *Draft
	for i := range drafts {
		if drafts[i].Kind == model.KindFunction {
			fn = &drafts[i]
			break
		}
	}
	require.NotNil(t, fn)
	require.Equal(t, "Greet(name string)", fn.Signature)
}

func TestLineWindowFallbackForUnknownLanguage(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "line"
	}
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}

	drafts, err := d.Chunk("notes.xyz", "text-fallback", []byte(content))
	require.NoError(t, err)
	require.NotEmpty(t, drafts)
	for _, dr := range drafts {
		require.Equal(t, model.KindLineWindow, dr.Kind)
		require.LessOrEqual(t, dr.EndLine-dr.StartLine+1, WindowLines)
	}
}

func TestMarkdownChunkerNestsSubsections(t *testing.T) {
	content := "# Title\n\nintro\n\n## Sub\n\nbody\n"
	drafts, err := MarkdownChunker{}.Chunk("doc.md", "markdown", []byte(content))
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	require.Equal(t, -1, drafts[0].ParentIdx)
	require.Equal(t, 0, drafts[1].ParentIdx)
}

func TestContentHashIsStable(t *testing.T) {
	d1 := Draft{Content: "abc"}
	d2 := Draft{Content: "abc"}
	require.Equal(t, d1.ContentHash(), d2.ContentHash())

	d3 := Draft{Content: "abcd"}
	require.NotEqual(t, d1.ContentHash(), d3.ContentHash())
}
