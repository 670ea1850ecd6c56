package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/codesearch-dev/codesearch/internal/config"
)

func TestSetupCmd_WritesConfigWithoutOllama(t *testing.T) {
	testDir := t.TempDir()
	withWorkingDir(t, testDir)

	// No Ollama daemon is reachable at the default URL in a test
	// sandbox, so setup should fall back to the static embedder.
	cmd := newSetupCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(filepath.Join(testDir, ".codesearch.yaml"))
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "static", cfg.Embed.Provider)
}

func TestSetupCmd_HasModelFlag(t *testing.T) {
	cmd := newSetupCmd()
	flag := cmd.Flags().Lookup("model")
	require.NotNil(t, flag)
	assert.Equal(t, "nomic-embed-text", flag.DefValue)
}
