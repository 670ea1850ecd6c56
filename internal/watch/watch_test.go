package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesModifyThenDelete(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Add("a.py", opModify)
	d.Add("a.py", opDelete)

	batch := <-d.Output()
	require.Equal(t, map[string]op{"a.py": opDelete}, batch)
	d.Stop()
}

func TestDebouncerCoalescesDeleteThenModify(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Add("a.py", opDelete)
	d.Add("a.py", opModify)

	batch := <-d.Output()
	require.Equal(t, map[string]op{"a.py": opModify}, batch)
	d.Stop()
}

func TestDebouncerFlushesPerPathIndependently(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add("a.py", opModify)

	// Keep resetting b.py's timer well past a.py's window; a.py must
	// still flush on its own schedule instead of waiting for b.py to
	// go quiet too.
	deadline := time.Now().Add(80 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		for time.Now().Before(deadline) {
			d.Add("b.py", opModify)
			time.Sleep(5 * time.Millisecond)
		}
		close(done)
	}()

	batch := <-d.Output()
	require.Equal(t, map[string]op{"a.py": opModify}, batch)
	<-done
}

func TestHeadWatcherDetectsBranchSwitch(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "refs", "heads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "refs", "heads", "main"), []byte("aaaa1111\n"), 0o644))

	h := newHeadWatcher(root, time.Millisecond)
	first := h.resolve()
	require.Contains(t, first, "aaaa1111")

	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/feature\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "refs", "heads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "refs", "heads", "feature"), []byte("bbbb2222\n"), 0o644))

	second := h.resolve()
	require.NotEqual(t, first, second)
	require.Contains(t, second, "bbbb2222")
}

func TestResolveGitDirFollowsWorktreePointer(t *testing.T) {
	root := t.TempDir()
	realGitDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git"), []byte("gitdir: "+realGitDir+"\n"), 0o644))

	require.Equal(t, realGitDir, resolveGitDir(root))
}

func TestPollingWatcherDetectsCreateAndDelete(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("x = 1\n"), 0o644))

	p := newPollingWatcher(root, time.Hour, func(string, bool) bool { return false })

	var modified, deleted []string
	p.scan(func(path string) { modified = append(modified, path) }, func(path string) { deleted = append(deleted, path) })
	require.Equal(t, []string{"a.py"}, modified)

	modified = nil
	require.NoError(t, os.Remove(filepath.Join(root, "a.py")))
	p.scan(func(path string) { modified = append(modified, path) }, func(path string) { deleted = append(deleted, path) })
	require.Empty(t, modified)
	require.Equal(t, []string{"a.py"}, deleted)
}
