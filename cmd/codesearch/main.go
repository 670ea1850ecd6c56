// Command codesearch is the CLI entry point: index, search, serve,
// mcp, stats, clear, list, doctor, setup, and cache (spec.md §6).
package main

import (
	"os"

	"github.com/codesearch-dev/codesearch/cmd/codesearch/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
