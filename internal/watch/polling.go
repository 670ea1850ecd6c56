package watch

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

type snapshot struct {
	modTime time.Time
	size    int64
}

// pollingWatcher detects changes by periodically re-scanning the tree,
// the fallback used when fsnotify cannot be initialized (spec.md
// §4.N).
type pollingWatcher struct {
	root     string
	interval time.Duration
	ignored  func(rel string, isDir bool) bool

	mu    sync.Mutex
	state map[string]snapshot
}

func newPollingWatcher(root string, interval time.Duration, ignored func(string, bool) bool) *pollingWatcher {
	return &pollingWatcher{root: root, interval: interval, ignored: ignored, state: make(map[string]snapshot)}
}

// run scans on the given interval until ctx is canceled, calling
// onModify/onDelete for each detected change.
func (p *pollingWatcher) run(ctx context.Context, onModify, onDelete func(path string)) {
	p.scan(onModify, onDelete)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scan(onModify, onDelete)
		}
	}
}

func (p *pollingWatcher) scan(onModify, onDelete func(path string)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(p.state))

	_ = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(p.root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if p.ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		seen[rel] = true
		snap := snapshot{modTime: info.ModTime(), size: info.Size()}
		if old, ok := p.state[rel]; !ok || old != snap {
			p.state[rel] = snap
			onModify(rel)
		}
		return nil
	})

	for rel := range p.state {
		if !seen[rel] {
			delete(p.state, rel)
			onDelete(rel)
		}
	}
}
