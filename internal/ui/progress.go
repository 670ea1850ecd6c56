package ui

import (
	"sync"
	"time"
)

// ProgressTracker accumulates ProgressEvent/ErrorEvent updates into a
// snapshot the TUI model can redraw from, independent of the cadence
// UpdateProgress is actually called at.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	current     int
	total       int
	currentFile string
	startTime   time.Time
	stageStart  time.Time
	errors      []ErrorEvent
	warnings    []ErrorEvent
}

// ProgressStats is an immutable snapshot of a ProgressTracker.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentFile string
	ErrorCount  int
	WarnCount   int
}

// NewProgressTracker returns a tracker starting at StageScanning.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{stage: StageScanning, startTime: now, stageStart: now}
}

// SetStage transitions to a new stage, resetting per-stage counters.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
	p.total = total
	p.current = 0
	p.currentFile = ""
	p.stageStart = time.Now()
}

// Update records progress within the current stage.
func (p *ProgressTracker) Update(current int, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	if file != "" {
		p.currentFile = file
	}
}

// AddError records a per-file error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Stats returns an immutable snapshot, including an ETA extrapolated
// from elapsed time within the current stage.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progress float64
	var eta time.Duration
	if p.total > 0 {
		progress = float64(p.current) / float64(p.total)
		if p.current > 0 {
			elapsed := time.Since(p.stageStart)
			perItem := elapsed / time.Duration(p.current)
			remaining := p.total - p.current
			eta = perItem * time.Duration(remaining)
		}
	}

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    progress,
		ETA:         eta,
		CurrentFile: p.currentFile,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
	}
}
