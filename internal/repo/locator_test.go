package repo

import (
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T, dir string) {
	t.Helper()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
}

func TestFindRootLocatesGitRoot(t *testing.T) {
	root := t.TempDir()
	initRepo(t, root)

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindRoot(nested)
	require.NoError(t, err)
	require.Equal(t, root, found)
}

func TestFindRootNonVCSFallback(t *testing.T) {
	dir := t.TempDir()
	found, err := FindRoot(dir)
	require.NoError(t, err)
	require.Equal(t, dir, found)
}

func TestFindRootRejectsAmbiguousNestedRoots(t *testing.T) {
	root := t.TempDir()
	initRepo(t, root)

	child1 := filepath.Join(root, "proj1")
	child2 := filepath.Join(root, "proj2")
	require.NoError(t, os.MkdirAll(child1, 0o755))
	require.NoError(t, os.MkdirAll(child2, 0o755))
	initRepo(t, child1)
	initRepo(t, child2)

	_, err := FindRoot(root)
	require.True(t, IsAmbiguousRepo(err))
}

func TestResolvePrefersExistingLocalDB(t *testing.T) {
	root := t.TempDir()
	initRepo(t, root)
	require.NoError(t, os.MkdirAll(filepath.Join(root, localDBDirName), 0o755))

	loc, err := Resolve(root)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, localDBDirName), loc.DBPath)
	require.False(t, loc.Global)
}

func TestSlugifyIsFilesystemSafe(t *testing.T) {
	s := slugify("/home/user/my project")
	require.NotContains(t, s, "/")
	require.NotContains(t, s, " ")
}
