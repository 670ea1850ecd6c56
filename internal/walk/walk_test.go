package walk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalkHonorsGitignoreAndDenyList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\nsecret/\n")
	writeFile(t, filepath.Join(root, "a.py"), "def foo():\n    return 1\n")
	writeFile(t, filepath.Join(root, "b.log"), "noise")
	writeFile(t, filepath.Join(root, "secret", "c.go"), "package secret")
	writeFile(t, filepath.Join(root, "vendor", "d.go"), "package vendor")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref: refs/heads/main")

	w, err := New(root)
	require.NoError(t, err)

	var got []File
	require.NoError(t, w.Walk(func(f File) error {
		got = append(got, f)
		return nil
	}))

	paths := map[string]bool{}
	for _, f := range got {
		paths[f.Path] = true
	}
	require.True(t, paths["a.py"])
	require.False(t, paths["b.log"])
	require.False(t, paths["secret/c.go"])
	require.False(t, paths["vendor/d.go"])
	require.False(t, paths[".git/HEAD"])

	require.True(t, w.Ignored("b.log", false))
	require.False(t, w.Ignored("a.py", false))
	require.Equal(t, "python", LanguageFor("a.py"))
	require.Equal(t, TextFallbackLanguage, LanguageFor("a.unknownext"))
}

func TestWalkDetectsBinaryFiles(t *testing.T) {
	root := t.TempDir()
	binPath := filepath.Join(root, "blob.bin")
	data := make([]byte, 1000)
	for i := range data {
		if i%10 == 0 {
			data[i] = 0
		} else {
			data[i] = byte('a' + i%26)
		}
	}
	require.NoError(t, os.WriteFile(binPath, data, 0o644))
	writeFile(t, filepath.Join(root, "text.txt"), "hello world")

	w, err := New(root)
	require.NoError(t, err)

	var got []string
	require.NoError(t, w.Walk(func(f File) error {
		got = append(got, f.Path)
		return nil
	}))

	require.Contains(t, got, "text.txt")
	require.NotContains(t, got, "blob.bin")
}

func TestLanguageFallback(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "weird.xyz"), "some content")

	w, err := New(root)
	require.NoError(t, err)

	var got []File
	require.NoError(t, w.Walk(func(f File) error {
		got = append(got, f)
		return nil
	}))
	require.Len(t, got, 1)
	require.Equal(t, TextFallbackLanguage, got[0].Language)
}
