package indexmgr

import (
	"context"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/codesearch-dev/codesearch/internal/lexical"
	"github.com/codesearch-dev/codesearch/internal/model"
)

// InconsistencyType categorizes a detected cross-store defect.
type InconsistencyType int

const (
	InconsistencyOrphanLexical InconsistencyType = iota
	InconsistencyOrphanVector
	InconsistencyMissingLexical
	InconsistencyMissingVector
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanLexical:
		return "orphan_lexical"
	case InconsistencyOrphanVector:
		return "orphan_vector"
	case InconsistencyMissingLexical:
		return "missing_lexical"
	case InconsistencyMissingVector:
		return "missing_vector"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected defect.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID model.ChunkID
	Details string
}

// CheckResult is the outcome of a full consistency pass.
type CheckResult struct {
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// ConsistencyChecker compares the Payload Store (source of truth)
// against the Lexical Index and Vector Index, detecting orphans
// (present downstream but not in the payload store) and missing
// entries (present in the payload store but absent downstream),
// per spec.md §4.M's background consistency checker.
type ConsistencyChecker struct {
	mgr *Manager
}

// NewConsistencyChecker builds a checker over mgr's storage layers.
func NewConsistencyChecker(mgr *Manager) *ConsistencyChecker {
	return &ConsistencyChecker{mgr: mgr}
}

// Check scans all three stores. It is O(n) in the total chunk count
// across stores and is meant to run on a slow background interval, not
// per-query.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()
	var issues []Inconsistency

	payloadIDs, err := c.mgr.env.AllChunkIDs()
	if err != nil {
		return nil, err
	}
	payloadSet := make(map[model.ChunkID]bool, len(payloadIDs))
	for _, id := range payloadIDs {
		payloadSet[id] = true
	}

	lexicalIDs, err := lexical.AllChunkIDs(c.mgr.env)
	if err != nil {
		slog.Warn("failed to get lexical ids for consistency check", slog.String("error", err.Error()))
	}
	vectorIDs := c.mgr.vectors.AllIDs()

	lexicalSet := make(map[model.ChunkID]bool, len(lexicalIDs))
	for _, id := range lexicalIDs {
		lexicalSet[id] = true
		if !payloadSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanLexical, ChunkID: id, Details: "lexical entry without matching payload"})
		}
	}

	vectorSet := make(map[model.ChunkID]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		vectorSet[id] = true
		if !payloadSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanVector, ChunkID: id, Details: "vector entry without matching payload"})
		}
	}

	for id := range payloadSet {
		if !lexicalSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingLexical, ChunkID: id, Details: "payload entry missing from lexical index"})
		}
		if !vectorSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingVector, ChunkID: id, Details: "payload entry missing from vector index"})
		}
	}

	return &CheckResult{
		Checked:         len(payloadSet),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair fixes what it safely can: orphans are deleted from the
// lexical/vector stores. Missing entries require a full rebuild, so
// Repair only logs them.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	var orphanVector []model.ChunkID
	var missing int

	err := c.mgr.env.Update(func(tx *bolt.Tx) error {
		for _, issue := range issues {
			switch issue.Type {
			case InconsistencyOrphanLexical:
				if err := lexical.DeleteChunk(tx, issue.ChunkID); err != nil {
					return err
				}
			case InconsistencyOrphanVector:
				orphanVector = append(orphanVector, issue.ChunkID)
			case InconsistencyMissingLexical, InconsistencyMissingVector:
				missing++
			}
		}
		return nil
	})
	if err != nil {
		slog.Warn("failed to delete orphan lexical entries", slog.String("error", err.Error()))
	}

	for _, id := range orphanVector {
		c.mgr.vectors.Delete(id)
	}

	if missing > 0 {
		slog.Warn("index has missing entries, run `codesearch index --force` to rebuild", slog.Int("missing_count", missing))
	}
	return nil
}

// QuickCheck compares entry counts only, skipping per-id comparison.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	payloadIDs, err := c.mgr.env.AllChunkIDs()
	if err != nil {
		return false, err
	}
	lexicalIDs, err := lexical.AllChunkIDs(c.mgr.env)
	if err != nil {
		return false, err
	}
	vectorStats := c.mgr.vectors.Stats()

	consistent := len(payloadIDs) == len(lexicalIDs) && len(payloadIDs) == vectorStats.Live
	if !consistent {
		slog.Debug("index counts mismatch",
			slog.Int("payload", len(payloadIDs)),
			slog.Int("lexical", len(lexicalIDs)),
			slog.Int("vector", vectorStats.Live))
	}
	return consistent, nil
}

// RunConsistencyChecker runs Check/Repair on a fixed interval until ctx
// is canceled, the background process named in spec.md §4.M. It never
// returns an error to its caller; failures are logged and the loop
// continues on the next tick.
func (m *Manager) RunConsistencyChecker(ctx context.Context, interval time.Duration) {
	checker := NewConsistencyChecker(m)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := checker.Check(ctx)
			if err != nil {
				slog.Warn("consistency check failed", slog.String("error", err.Error()))
				continue
			}
			if len(result.Inconsistencies) == 0 {
				continue
			}
			slog.Warn("consistency check found issues",
				slog.Int("checked", result.Checked),
				slog.Int("issues", len(result.Inconsistencies)))
			if err := checker.Repair(ctx, result.Inconsistencies); err != nil {
				slog.Warn("consistency repair failed", slog.String("error", err.Error()))
			}
		}
	}
}
