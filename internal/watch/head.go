package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// headWatcher polls <root>/.git/HEAD (following a symbolic-ref target
// or a worktree's gitdir pointer file) every interval, coalescing to
// one pending branch-changed event whenever its resolved content
// changes (spec.md §4.N).
type headWatcher struct {
	gitDir   string
	interval time.Duration
	last     string
}

func newHeadWatcher(root string, interval time.Duration) *headWatcher {
	return &headWatcher{gitDir: resolveGitDir(root), interval: interval}
}

// resolveGitDir follows a `.git` worktree pointer file (`gitdir: ...`)
// to the real git directory, or returns root/.git directly for a
// normal (non-worktree) checkout.
func resolveGitDir(root string) string {
	dotGit := filepath.Join(root, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return dotGit
	}
	if info.IsDir() {
		return dotGit
	}

	data, err := os.ReadFile(dotGit)
	if err != nil {
		return dotGit
	}
	line := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(line, "gitdir:"); ok {
		target = strings.TrimSpace(target)
		if !filepath.IsAbs(target) {
			target = filepath.Join(root, target)
		}
		return target
	}
	return dotGit
}

func (h *headWatcher) run(ctx context.Context, onChange func()) {
	h.last = h.resolve()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := h.resolve()
			if current != h.last {
				h.last = current
				onChange()
			}
		}
	}
}

// resolve reads HEAD and, if it is a symbolic ref, dereferences it to
// the target ref's own commit hash, so switching branches (which
// rewrites HEAD's ref target but not necessarily its byte content
// alone) is still detected.
func (h *headWatcher) resolve() string {
	head, err := os.ReadFile(filepath.Join(h.gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	content := strings.TrimSpace(string(head))

	ref, ok := strings.CutPrefix(content, "ref:")
	if !ok {
		return content // detached HEAD: the hash itself is the signal
	}
	ref = strings.TrimSpace(ref)

	target, err := os.ReadFile(filepath.Join(h.gitDir, filepath.FromSlash(ref)))
	if err != nil {
		return content // ref file not packed loose; fall back to HEAD's own text
	}
	return ref + "@" + strings.TrimSpace(string(target))
}
