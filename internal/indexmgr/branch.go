package indexmgr

import (
	"context"

	"github.com/codesearch-dev/codesearch/internal/walk"
)

// refreshFromBranchChange implements the branch-changed event
// handling of spec.md §4.M: diff the current walker output against
// the File-Meta Store, producing adds, modifies, and deletes. Adds
// and modifies share one code path since IndexFile's digest check
// already short-circuits unchanged files.
func (m *Manager) refreshFromBranchChange(ctx context.Context) error {
	seen := make(map[string]bool)

	err := m.walker.Walk(func(f walk.File) error {
		seen[f.Path] = true
		if err := m.IndexFile(ctx, f.Path); err != nil {
			m.progress.RecordFileError(f.Path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	records, err := m.env.AllFileRecords()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if !seen[rec.Path] {
			if err := m.DeletePath(rec.Path); err != nil {
				return err
			}
		}
	}
	return nil
}
