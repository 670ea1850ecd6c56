package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingWriter implements io.Writer with daily rotation, matching
// spec.md §6's `codesearch.log` / `codesearch.log.YYYY-MM-DD` layout.
// Retention (file count and age) is enforced on a timer, not on every
// write, so a busy writer never pays cleanup cost inline.
type RotatingWriter struct {
	mu sync.Mutex

	path          string
	maxFiles      int
	retentionDays int

	file       *os.File
	currentDay string

	stopCleanup chan struct{}
}

// Config controls rotation/retention behavior, sourced from the
// CODESEARCH_LOG_* environment variables named in spec.md §6.
type Config struct {
	RetentionDays   int
	MaxFiles        int
	CleanupInterval time.Duration
}

// DefaultConfig returns the documented defaults: 5 files / 5 days.
func DefaultConfig() Config {
	return Config{
		RetentionDays:   5,
		MaxFiles:        5,
		CleanupInterval: time.Hour,
	}
}

// NewRotatingWriter opens (or creates) the active log file at path and
// starts a background goroutine enforcing retention every cleanupInterval.
func NewRotatingWriter(path string, cfg Config) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:          path,
		maxFiles:      cfg.MaxFiles,
		retentionDays: cfg.RetentionDays,
		currentDay:    today(),
		stopCleanup:   make(chan struct{}),
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	go w.cleanupLoop(interval)

	return w, nil
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// Write implements io.Writer, rotating to a new dated file whenever
// the calendar day changes.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if day := today(); day != w.currentDay {
		if err := w.rotate(day); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "codesearch: log rotation failed: %v\n", err)
		}
	}

	return w.file.Write(p)
}

// rotate renames the active file to `<path>.<oldDay>` and opens a
// fresh active file for the new day.
func (w *RotatingWriter) rotate(newDay string) error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
	}

	rotated := w.path + "." + w.currentDay
	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, rotated); err != nil {
			return fmt.Errorf("rotate log file: %w", err)
		}
	}

	w.currentDay = newDay
	return w.openFile()
}

func (w *RotatingWriter) openFile() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.file = f
	return nil
}

// Close closes the active log file and stops the retention goroutine.
func (w *RotatingWriter) Close() error {
	close(w.stopCleanup)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Sync flushes the active file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Sync()
	}
	return nil
}

func (w *RotatingWriter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCleanup:
			return
		case <-ticker.C:
			w.enforceRetention()
		}
	}
}

// enforceRetention deletes rotated files older than retentionDays and
// beyond maxFiles, whichever is stricter.
func (w *RotatingWriter) enforceRetention() {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)

	matches, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil {
		return
	}

	type rotated struct {
		path string
		day  time.Time
	}
	var files []rotated
	for _, m := range matches {
		suffix := strings.TrimPrefix(filepath.Base(m), base+".")
		day, err := time.Parse("2006-01-02", suffix)
		if err != nil {
			continue
		}
		files = append(files, rotated{path: m, day: day})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].day.After(files[j].day) })

	cutoff := time.Now().UTC().AddDate(0, 0, -w.retentionDays)
	for i, f := range files {
		if i >= w.maxFiles || f.day.Before(cutoff) {
			_ = os.Remove(f.path)
		}
	}
}
