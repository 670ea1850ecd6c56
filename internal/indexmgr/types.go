// Package indexmgr implements the Index Manager (spec.md §4.M): the
// central coordinator owning three event queues (modify, delete,
// branch-changed), the single-file re-index pipeline, full builds,
// and a background consistency checker.
package indexmgr

import (
	"context"
	"sync"

	"github.com/codesearch-dev/codesearch/internal/chunk"
	"github.com/codesearch-dev/codesearch/internal/embed"
	"github.com/codesearch-dev/codesearch/internal/embedcache"
	"github.com/codesearch-dev/codesearch/internal/kv"
	"github.com/codesearch-dev/codesearch/internal/model"
	"github.com/codesearch-dev/codesearch/internal/vectorindex"
	"github.com/codesearch-dev/codesearch/internal/walk"
)

// Config bundles what the Manager needs beyond the storage layers it
// is handed directly.
type Config struct {
	Root       string // repository root, for resolving relative paths
	DBPath     string // resolved index database directory, for the `index_status` MCP tool
	VectorsDir string // where FullBuild checkpoints the vector index (spec.md §6's on-disk layout)
	BatchSize  int    // embedding batch size; 0 selects spec.md §4.F's auto default
	WorkerPool int    // bounded pool size for full builds; 0 = min(cores, 8)
}

// Manager is the Index Manager. It owns the three event queues and
// the single writer that drains them (spec.md §4.M); callers enqueue
// events from the Watcher Suite or the CLI's `index` command.
type Manager struct {
	cfg      Config
	env      *kv.Environment
	vectors  *vectorindex.Index
	embedder embed.Embedder
	cache    *embedcache.Cache
	dispatch *chunk.Dispatcher
	walker   *walk.Walker

	mu        sync.Mutex
	modifies  map[string]bool
	deletes   map[string]bool
	branchChg bool

	progress *Progress
}

// New builds a Manager over the given storage/model components.
func New(cfg Config, env *kv.Environment, vectors *vectorindex.Index, embedder embed.Embedder, cache *embedcache.Cache, dispatch *chunk.Dispatcher, walker *walk.Walker) *Manager {
	return &Manager{
		cfg:      cfg,
		env:      env,
		vectors:  vectors,
		embedder: embedder,
		cache:    cache,
		dispatch: dispatch,
		walker:   walker,
		modifies: make(map[string]bool),
		deletes:  make(map[string]bool),
		progress: NewProgress(),
	}
}

// Progress exposes the Manager's current build/indexing progress, for
// the `index_status` MCP tool and `stats` CLI command.
func (m *Manager) Progress() *Progress { return m.progress }

// DBPath returns the resolved index database directory.
func (m *Manager) DBPath() string { return m.cfg.DBPath }

// Schema returns the singleton schema metadata record (model id,
// embedding dimension, chunk id counter), for the `index_status` MCP
// tool and `stats` CLI command.
func (m *Manager) Schema() (model.SchemaMeta, error) {
	return m.env.GetSchema()
}

// Counts returns the number of distinct files and chunks currently
// tracked in the Payload Store, for the `index_status` MCP tool.
func (m *Manager) Counts() (files, chunks int, err error) {
	records, err := m.env.AllFileRecords()
	if err != nil {
		return 0, 0, err
	}
	ids, err := m.env.AllChunkIDs()
	if err != nil {
		return 0, 0, err
	}
	return len(records), len(ids), nil
}

// FileRecordsUnder returns the paths of every currently-tracked file,
// for the Watcher Suite's directory-delete reconstruction (spec.md
// §4.N): a raw filesystem delete event carries no reliable indication
// of which tracked files lived under a removed directory, so the
// caller diffs this list against the deleted prefix itself.
func (m *Manager) FileRecordsUnder(_ string) ([]string, error) {
	records, err := m.env.AllFileRecords()
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(records))
	for i, rec := range records {
		paths[i] = rec.Path
	}
	return paths, nil
}

// EnqueueModify records path as needing re-indexing. Safe to call
// concurrently with Tick.
func (m *Manager) EnqueueModify(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deletes, path)
	m.modifies[path] = true
}

// EnqueueDelete records path (file or directory) as removed.
func (m *Manager) EnqueueDelete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.modifies, path)
	m.deletes[path] = true
}

// EnqueueBranchChanged records that HEAD moved; coalesced if already
// pending (spec.md §4.N).
func (m *Manager) EnqueueBranchChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branchChg = true
}

// drainPending atomically takes the current queue contents and resets
// them, implementing the branch-changed → deletes → modifies
// precedence order from spec.md §4.M.
func (m *Manager) drainPending() (branchChanged bool, deletes, modifies []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	branchChanged = m.branchChg
	m.branchChg = false

	deletes = make([]string, 0, len(m.deletes))
	for p := range m.deletes {
		deletes = append(deletes, p)
	}
	m.deletes = make(map[string]bool)

	modifies = make([]string, 0, len(m.modifies))
	for p := range m.modifies {
		modifies = append(modifies, p)
	}
	m.modifies = make(map[string]bool)

	return branchChanged, deletes, modifies
}

// Tick drains one batch of pending events with branch-changed → delete
// → modify precedence (spec.md §4.M). It is safe to call repeatedly
// from a single writer goroutine; concurrent calls are not supported.
func (m *Manager) Tick(ctx context.Context) error {
	branchChanged, deletes, modifies := m.drainPending()

	if branchChanged {
		if err := m.refreshFromBranchChange(ctx); err != nil {
			return err
		}
		// branch-changed flushes pending modifies from the prior branch
		// before processing the new branch (spec.md §5 ordering
		// guarantee iii); refreshFromBranchChange already diffed the
		// walker output itself, so any modifies/deletes queued in the
		// same tick are now stale and are dropped.
		return nil
	}

	for _, path := range deletes {
		if err := m.DeletePath(path); err != nil {
			return err
		}
	}
	for _, path := range modifies {
		if err := m.IndexFile(ctx, path); err != nil {
			// Per-file failures are logged and skipped, not fatal
			// (spec.md §4.N "Failure semantics").
			m.progress.RecordFileError(path, err)
			continue
		}
	}
	return nil
}
