package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesearch-dev/codesearch/internal/ui"
)

func TestStatsCmd_TextOutputAfterIndexing(t *testing.T) {
	testDir := t.TempDir()
	indexTestProject(t, testDir)
	withWorkingDir(t, testDir)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"stats"})

	require.NoError(t, cmd.Execute())
	assert.NotEmpty(t, buf.String())
}

func TestStatsCmd_JSONOutputIsValid(t *testing.T) {
	testDir := t.TempDir()
	indexTestProject(t, testDir)
	withWorkingDir(t, testDir)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"stats", "--json"})

	require.NoError(t, cmd.Execute())

	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, 1, info.TotalFiles)
	assert.Equal(t, "static-256", info.Model)
}

func TestStatsCmd_FailsWithoutIndex(t *testing.T) {
	testDir := t.TempDir()
	createTestProject(t, testDir)
	withWorkingDir(t, testDir)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"stats"})

	assert.Error(t, cmd.Execute())
}
