package indexmgr

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codesearch-dev/codesearch/internal/embedcache"
	"github.com/codesearch-dev/codesearch/internal/walk"
)

// FullBuild clears the Payload Store, File-Meta Store, Lexical Index,
// and Vector Index, then re-walks and re-indexes the whole tree from
// scratch (spec.md §4.M, the `index --force` path).
//
// The CPU-heavy chunk+embed stage runs on a bounded worker pool
// (spec.md §5); every commit to the KV Environment and Vector Index
// flows through a single writer goroutine, so concurrent workers never
// race on storage mutations.
func (m *Manager) FullBuild(ctx context.Context) error {
	m.progress.SetStage(StageScanning, 0)

	var paths []string
	err := m.walker.Walk(func(f walk.File) error {
		paths = append(paths, f.Path)
		return nil
	})
	if err != nil {
		return err
	}

	if err := m.env.Clear(); err != nil {
		return err
	}
	m.vectors.Clear()

	m.progress.SetStage(StageEmbedding, len(paths))

	plans := make(chan filePlan, m.workerCount())
	writerDone := make(chan error, 1)

	go func() {
		writerDone <- m.commitPlans(plans)
	}()

	grp, grpCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(m.workerCount()))

	for _, path := range paths {
		path := path
		if err := sem.Acquire(grpCtx, 1); err != nil {
			break
		}
		grp.Go(func() error {
			defer sem.Release(1)

			plan, err := m.planFile(grpCtx, path)
			if err != nil {
				if err == errFileGone {
					return nil // raced with a concurrent deletion; nothing to commit
				}
				m.progress.RecordFileError(path, err)
				return nil // per-file failures are contained, not fatal (spec.md §4.N)
			}
			plan.path = path
			select {
			case plans <- plan:
			case <-grpCtx.Done():
				return grpCtx.Err()
			}
			return nil
		})
	}

	buildErr := grp.Wait()
	close(plans)
	writeErr := <-writerDone

	if buildErr != nil {
		m.progress.SetError(buildErr.Error())
		return buildErr
	}
	if writeErr != nil {
		m.progress.SetError(writeErr.Error())
		return writeErr
	}

	if m.cfg.VectorsDir != "" {
		if err := m.vectors.Save(m.cfg.VectorsDir); err != nil {
			return err
		}
	}

	m.progress.SetStage(StageIndexing, len(paths))
	m.progress.UpdateFiles(len(paths))
	_ = m.cache.Prune(embedcache.MaxDiskEntries)
	m.progress.SetReady()
	return nil
}

// commitPlans is the single writer task: it serially commits every
// plan sent by the worker pool, so all mutating KV and Vector Index
// transactions are strictly ordered (spec.md §5).
func (m *Manager) commitPlans(plans <-chan filePlan) error {
	processed := 0
	for plan := range plans {
		if plan.skip {
			continue
		}
		if err := m.commitPlan(plan); err != nil {
			return err
		}
		m.progress.IncrementChunks(len(plan.chunks))
		processed++
		m.progress.UpdateFiles(processed)
	}
	return nil
}

func (m *Manager) workerCount() int {
	if m.cfg.WorkerPool > 0 {
		return m.cfg.WorkerPool
	}
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}
