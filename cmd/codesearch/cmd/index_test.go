package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexCmd_CreatesDatabaseDirectory(t *testing.T) {
	testDir := t.TempDir()
	createTestProject(t, testDir)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", testDir})

	require.NoError(t, cmd.Execute())
	assert.DirExists(t, filepath.Join(testDir, ".codesearch.db"))
}

func TestIndexCmd_ReportsFileAndChunkCounts(t *testing.T) {
	testDir := t.TempDir()
	createTestProject(t, testDir)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", testDir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Indexed")
}

func TestIndexCmd_ForceRebuildsFromScratch(t *testing.T) {
	testDir := t.TempDir()
	createTestProject(t, testDir)

	first := NewRootCmd()
	first.SetOut(&bytes.Buffer{})
	first.SetErr(&bytes.Buffer{})
	first.SetArgs([]string{"index", testDir})
	require.NoError(t, first.Execute())

	second := NewRootCmd()
	buf := new(bytes.Buffer)
	second.SetOut(buf)
	second.SetErr(buf)
	second.SetArgs([]string{"index", testDir, "--force"})

	require.NoError(t, second.Execute())
	assert.Contains(t, buf.String(), "Indexed")
}

func TestIndexCmd_DryRunDoesNotWrite(t *testing.T) {
	testDir := t.TempDir()
	createTestProject(t, testDir)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", testDir, "--dry-run"})

	require.NoError(t, cmd.Execute())
	assert.NoDirExists(t, filepath.Join(testDir, ".codesearch.db"))
	assert.Contains(t, buf.String(), "Would add")
}

func TestIndexCmd_AddRegistersWithoutIndexing(t *testing.T) {
	testDir := t.TempDir()
	createTestProject(t, testDir)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", testDir, "--add"})

	require.NoError(t, cmd.Execute())
	assert.DirExists(t, filepath.Join(testDir, ".codesearch.db"))

	records, err := countFileRecords(t, testDir)
	require.NoError(t, err)
	assert.Zero(t, records, "--add must not index any files")
}

func TestIndexCmd_ListReportsTrackedFiles(t *testing.T) {
	testDir := t.TempDir()
	createTestProject(t, testDir)

	build := NewRootCmd()
	build.SetOut(&bytes.Buffer{})
	build.SetErr(&bytes.Buffer{})
	build.SetArgs([]string{"index", testDir})
	require.NoError(t, build.Execute())

	list := NewRootCmd()
	buf := new(bytes.Buffer)
	list.SetOut(buf)
	list.SetErr(buf)
	list.SetArgs([]string{"index", testDir, "--list"})

	require.NoError(t, list.Execute())
	assert.Contains(t, buf.String(), "main.go")
}

func TestIndexCmd_RmRemovesDatabase(t *testing.T) {
	testDir := t.TempDir()
	createTestProject(t, testDir)

	build := NewRootCmd()
	build.SetOut(&bytes.Buffer{})
	build.SetErr(&bytes.Buffer{})
	build.SetArgs([]string{"index", testDir})
	require.NoError(t, build.Execute())

	rm := NewRootCmd()
	buf := new(bytes.Buffer)
	rm.SetOut(buf)
	rm.SetErr(buf)
	rm.SetArgs([]string{"index", testDir, "--rm"})

	require.NoError(t, rm.Execute())
	assert.NoDirExists(t, filepath.Join(testDir, ".codesearch.db"))
}

func TestIndexCmd_RejectsConflictingModeFlags(t *testing.T) {
	testDir := t.TempDir()
	createTestProject(t, testDir)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", testDir, "--force", "--dry-run"})

	err := cmd.Execute()

	require.Error(t, err)
	var ec *exitError
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, 2, ec.ExitCode())
}

// countFileRecords opens the resolved database at testDir directly and
// reports how many file records it holds, for asserting --add indexed
// nothing.
func countFileRecords(t *testing.T, testDir string) (int, error) {
	t.Helper()
	a, err := openApp(testDir, false)
	if err != nil {
		return 0, err
	}
	defer a.Close()
	records, err := a.env.AllFileRecords()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
