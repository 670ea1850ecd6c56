package logging

import (
	"os"
	"path/filepath"
)

// LogDir returns the directory logs are written to for the given
// database root (the `<root>/.codesearch.db/logs/` layout from
// spec.md §6).
func LogDir(dbRoot string) string {
	return filepath.Join(dbRoot, "logs")
}

// LogFilePath returns the path of the active (un-rotated) log file.
func LogFilePath(dbRoot string) string {
	return filepath.Join(LogDir(dbRoot), "codesearch.log")
}

// EnsureLogDir creates the log directory if it does not already exist.
func EnsureLogDir(dbRoot string) error {
	return os.MkdirAll(LogDir(dbRoot), 0o755)
}
