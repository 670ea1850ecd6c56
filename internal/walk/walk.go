// Package walk implements the File Walker (spec.md §4.B): it enumerates
// (path, language) pairs honoring layered ignore rules merged from
// .gitignore, .codesearchignore, and a built-in deny list, and flags
// binary files for exclusion.
package walk

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/codesearch-dev/codesearch/internal/cserr"
)

// File is one walker result: a repository-relative path and its
// detected language (or "text-fallback" for unknown extensions, per
// spec.md §4.B).
type File struct {
	Path     string
	Language string
}

const TextFallbackLanguage = "text-fallback"

// builtinDeny lists directories and files always excluded, regardless
// of .gitignore contents, per spec.md §4.B.
var builtinDeny = []string{
	".git/",
	".codesearch.db/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"target/",
	"__pycache__/",
	".venv/",
	".next/",
	".cache/",
	"*.lock",
	"*.exe", "*.dll", "*.so", "*.dylib",
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.ico", "*.pdf", "*.zip", "*.tar", "*.gz",
}

var extToLanguage = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".py":   "python",
	".md":   "markdown",
	".mdx":  "markdown",
}

// Walker enumerates files under a repository root.
type Walker struct {
	root    string
	matcher *gitignore.GitIgnore
}

// New builds a Walker for root, merging .gitignore, .codesearchignore
// and the built-in deny list into a single layered matcher.
func New(root string) (*Walker, error) {
	patterns := append([]string{}, builtinDeny...)
	patterns = append(patterns, readIgnoreFile(filepath.Join(root, ".gitignore"))...)
	patterns = append(patterns, readIgnoreFile(filepath.Join(root, ".codesearchignore"))...)

	return &Walker{
		root:    root,
		matcher: gitignore.CompileIgnoreLines(patterns...),
	}, nil
}

func readIgnoreFile(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Walk enumerates candidate (path, language) pairs under the root,
// skipping ignored and binary files, and calls fn for each.
func (w *Walker) Walk(fn func(File) error) error {
	return filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return cserr.IoError(path, err)
		}
		if path == w.root {
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return cserr.IoError(path, err)
		}
		rel = filepath.ToSlash(rel)

		matchPath := rel
		if d.IsDir() {
			matchPath += "/"
		}
		if w.matcher.MatchesPath(matchPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		isBinary, err := isBinaryFile(path)
		if err != nil {
			return nil // unreadable: skip, don't abort the walk
		}
		if isBinary {
			return nil
		}

		return fn(File{Path: rel, Language: languageFor(rel)})
	})
}

// LanguageFor detects a single path's language by extension, exported
// for callers (e.g. the Index Manager's per-file watcher pipeline)
// that need a language tag outside of a full Walk.
func LanguageFor(path string) string {
	return languageFor(path)
}

// Ignored reports whether rel (a root-relative, slash-separated path)
// matches the layered .gitignore/.codesearchignore/built-in-deny
// rules this Walker was built with. The watcher suite uses this to
// decide whether a raw filesystem event is worth enqueueing.
func (w *Walker) Ignored(rel string, isDir bool) bool {
	matchPath := rel
	if isDir {
		matchPath += "/"
	}
	return w.matcher.MatchesPath(matchPath)
}

func languageFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extToLanguage[ext]; ok {
		return lang
	}
	return TextFallbackLanguage
}

// isBinaryFile implements spec.md §4.B's binary-detection rule: read
// the first 8 KiB and reject if the NUL-byte ratio exceeds 0.1% or
// UTF-8 decoding fails for more than a small prefix.
func isBinaryFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 8192)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}
	buf = buf[:n]
	if n == 0 {
		return false, nil
	}

	nulCount := 0
	for _, b := range buf {
		if b == 0 {
			nulCount++
		}
	}
	if float64(nulCount)/float64(n) > 0.001 {
		return true, nil
	}

	return !looksLikeUTF8Prefix(buf), nil
}

// looksLikeUTF8Prefix tolerates a small invalid-UTF-8 prefix (e.g. a
// truncated multi-byte sequence at the 8 KiB boundary) but rejects
// content with a significant proportion of invalid bytes.
func looksLikeUTF8Prefix(buf []byte) bool {
	invalid := 0
	i := 0
	for i < len(buf) {
		r, size := utf8.DecodeRune(buf[i:])
		if r == utf8.RuneError && size == 1 {
			invalid++
		}
		i += size
	}
	return float64(invalid)/float64(len(buf)) <= 0.01
}
