package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the minimum soft RLIMIT_NOFILE doctor wants:
// a full build opens one fd per worker plus the KV/vector index files
// (spec.md §5's bounded worker pool, default min(cores, 8)).
const MinFileDescriptors = 1024

// CheckFileDescriptors reports the process's file descriptor limit.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", limit.Cur, MinFileDescriptors)
	if limit.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}
	result.Status = StatusPass
	return result
}
