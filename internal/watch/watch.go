// Package watch implements the Watcher Suite (spec.md §4.N): a
// debounced filesystem watcher (fsnotify, with a stat-polling
// fallback) plus a HEAD poller, both feeding the Index Manager's event
// queues.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codesearch-dev/codesearch/internal/indexmgr"
	"github.com/codesearch-dev/codesearch/internal/walk"
)

// Options configures the Watcher Suite, defaulting to spec.md §4.N's
// documented intervals (1500ms debounce, 100ms HEAD poll).
type Options struct {
	DebounceWindow   time.Duration
	HeadPollInterval time.Duration
	PollInterval     time.Duration // fallback scan interval when fsnotify is unavailable
}

// DefaultOptions returns spec.md §4.N's defaults.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:   1500 * time.Millisecond,
		HeadPollInterval: 100 * time.Millisecond,
		PollInterval:     5 * time.Second,
	}
}

// Suite owns the filesystem watcher, the HEAD poller, and the
// debouncer that sits between raw events and the Index Manager's
// queues.
type Suite struct {
	root     string
	mgr      *indexmgr.Manager
	walker   *walk.Walker
	opts     Options
	debounce *Debouncer
	fsw      *fsnotify.Watcher
	head     *headWatcher
}

// New builds a Suite over root, attempting fsnotify and falling back
// to polling if it cannot be initialized.
func New(root string, mgr *indexmgr.Manager, walker *walk.Walker, opts Options) *Suite {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("watch: fsnotify unavailable, falling back to polling", slog.String("error", err.Error()))
		fsw = nil
	}

	return &Suite{
		root:     root,
		mgr:      mgr,
		walker:   walker,
		opts:     opts,
		debounce: NewDebouncer(opts.DebounceWindow),
		fsw:      fsw,
		head:     newHeadWatcher(root, opts.HeadPollInterval),
	}
}

// Run starts watching until ctx is canceled. It blocks; callers should
// run it in its own goroutine.
func (s *Suite) Run(ctx context.Context) error {
	go s.forwardDebounced(ctx)
	go s.head.run(ctx, s.mgr.EnqueueBranchChanged)

	if s.fsw != nil {
		return s.runFsnotify(ctx)
	}

	poll := newPollingWatcher(s.root, s.opts.PollInterval, s.walker.Ignored)
	poll.run(ctx, func(p string) { s.debounce.Add(p, opModify) }, func(p string) { s.debounce.Add(p, opDelete) })
	return nil
}

func (s *Suite) runFsnotify(ctx context.Context) error {
	defer s.fsw.Close()

	if err := s.addRecursive(s.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return nil
			}
			s.handleFsnotifyEvent(ev)
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch: fsnotify error", slog.String("error", err.Error()))
		}
	}
}

// addRecursive registers every non-ignored directory under root with
// fsnotify, which (unlike the `walk` package's output) does not watch
// subdirectories automatically.
func (s *Suite) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel != "." {
			rel = filepath.ToSlash(rel)
			if s.walker.Ignored(rel, true) {
				return filepath.SkipDir
			}
		}
		return s.fsw.Add(path)
	})
}

func (s *Suite) handleFsnotifyEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(s.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, statErr := os.Stat(ev.Name); statErr == nil {
		isDir = info.IsDir()
	}

	if s.walker.Ignored(rel, isDir) {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		if isDir {
			_ = s.fsw.Add(ev.Name)
			return // directory creation itself isn't indexable content
		}
		s.debounce.Add(rel, opModify)
	case ev.Op&fsnotify.Write != 0:
		s.debounce.Add(rel, opModify)
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		s.debounce.Add(rel, opDelete)
	}
}

func (s *Suite) forwardDebounced(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-s.debounce.Output():
			if !ok {
				return
			}
			s.applyBatch(batch)
		}
	}
}

// applyBatch enqueues each coalesced event onto the Index Manager's
// queues. Every delete is also expanded into one delete per
// currently-tracked file under path+"/", so a deleted directory
// removes its files, reconstructing the directory-delete semantics
// from the File-Meta Store (spec.md §4.N).
func (s *Suite) applyBatch(batch map[string]op) {
	for path, o := range batch {
		switch o {
		case opModify:
			s.mgr.EnqueueModify(path)
		case opDelete:
			s.mgr.EnqueueDelete(path)
			s.enqueueDeletesUnderDir(path)
		}
	}
}

func (s *Suite) enqueueDeletesUnderDir(dir string) {
	records, err := s.mgr.FileRecordsUnder(dir)
	if err != nil {
		return
	}
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for _, path := range records {
		if strings.HasPrefix(path, prefix) {
			s.mgr.EnqueueDelete(path)
		}
	}
}

// Stop stops the debouncer. The fsnotify handle is closed when Run's
// event loop returns.
func (s *Suite) Stop() {
	s.debounce.Stop()
}
