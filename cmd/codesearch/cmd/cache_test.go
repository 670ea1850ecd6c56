package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesearch-dev/codesearch/internal/embedcache"
)

func TestCacheCmd_StatsOnEmptyCache(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cmd := newCacheCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"stats"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "empty")
}

func TestCacheCmd_StatsReportsPopulatedModel(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	root := filepath.Join(home, ".codesearch", "embedding_cache")
	modelDir := embedcache.ModelDir(root, "static-256")
	c, err := embedcache.New(modelDir, 8, 8, 0)
	require.NoError(t, err)
	require.NoError(t, c.Put("somekey", []float32{1, 2, 3}))

	cmd := newCacheCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"stats"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Total:")
}

func TestCacheCmd_ClearYesRemovesModelDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	root := filepath.Join(home, ".codesearch", "embedding_cache")
	modelDir := embedcache.ModelDir(root, "static-256")
	c, err := embedcache.New(modelDir, 8, 8, 0)
	require.NoError(t, err)
	require.NoError(t, c.Put("somekey", []float32{1, 2, 3}))

	cmd := newCacheCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"clear", "static-256", "--yes"})

	require.NoError(t, cmd.Execute())
	assert.NoDirExists(t, modelDir)
}

func TestCacheCmd_NoSubcommandIsUsageError(t *testing.T) {
	cmd := newCacheCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	require.Error(t, err)
	var ec *exitError
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, 2, ec.ExitCode())
}
