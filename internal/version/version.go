// Package version provides build and version information for
// codesearch, set via ldflags at build time.
package version

import (
	"fmt"
	"runtime"
)

// Version is set via ldflags:
// -X github.com/codesearch-dev/codesearch/internal/version.Version={{.Version}}
var Version = "dev"

var (
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date in RFC3339 format.
	Date = "unknown"
	// GoVersion is the Go version used to build the binary.
	GoVersion = runtime.Version()
)

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("codesearch %s (commit: %s, built: %s, go: %s)", Version, Commit, Date, GoVersion)
}

// Short returns just the version string.
func Short() string { return Version }
