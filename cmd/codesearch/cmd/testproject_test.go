package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestProject writes a minimal Go project plus a .codesearch.yaml
// pinning the offline static embedder, so indexing tests run without a
// reachable Ollama daemon.
func createTestProject(t *testing.T, dir string) {
	t.Helper()

	cfg := "embed:\n  provider: static\n  model: static-256\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codesearch.yaml"), []byte(cfg), 0o644))

	goMod := "module testproject\n\ngo 1.21\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0o644))

	mainGo := `package main

import "fmt"

// greet prints a friendly hello to name.
func greet(name string) {
	fmt.Printf("Hello, %s!\n", name)
}

func main() {
	greet("World")
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(mainGo), 0o644))
}

// withWorkingDir chdirs into dir for the duration of the test and
// restores the prior working directory on cleanup.
func withWorkingDir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
