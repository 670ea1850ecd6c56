package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withStdin replaces os.Stdin with a pipe fed with input for the
// duration of the test, since confirm() reads os.Stdin directly rather
// than a cobra-injectable stream.
func withStdin(t *testing.T, input string) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString(input)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	old := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = old })
}

func TestClearCmd_YesSkipsConfirmation(t *testing.T) {
	testDir := t.TempDir()
	indexTestProject(t, testDir)
	withWorkingDir(t, testDir)

	records, err := countFileRecords(t, testDir)
	require.NoError(t, err)
	require.NotZero(t, records)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"clear", "--yes"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Cleared")

	after, err := countFileRecords(t, testDir)
	require.NoError(t, err)
	assert.Zero(t, after)
}

func TestClearCmd_AbortsWithoutConfirmation(t *testing.T) {
	testDir := t.TempDir()
	indexTestProject(t, testDir)
	withWorkingDir(t, testDir)

	withStdin(t, "n\n")

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"clear"})

	require.NoError(t, cmd.Execute())

	records, err := countFileRecords(t, testDir)
	require.NoError(t, err)
	assert.NotZero(t, records, "aborted clear must not wipe the database")
}
