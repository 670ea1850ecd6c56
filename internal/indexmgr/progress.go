package indexmgr

import (
	"sync"
	"time"
)

// Status is the overall indexing state reported by `index_status`.
type Status string

const (
	StatusIndexing Status = "indexing"
	StatusReady    Status = "ready"
	StatusError    Status = "error"
)

// Stage is the current phase of a full build.
type Stage string

const (
	StageScanning  Stage = "scanning"
	StageChunking  Stage = "chunking"
	StageEmbedding Stage = "embedding"
	StageIndexing  Stage = "indexing"
)

// Snapshot is an immutable view of Progress, safe to serialize.
type Snapshot struct {
	Status         string  `json:"status"`
	Stage          string  `json:"stage"`
	FilesTotal     int     `json:"files_total"`
	FilesProcessed int     `json:"files_processed"`
	ChunksIndexed  int     `json:"chunks_indexed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	FileErrors     int     `json:"file_errors"`
}

// Progress tracks the Index Manager's build state, per spec.md §6's
// `index_status` operation. Every chunk count it reports reflects what
// is actually committed, never a projection (Open Question resolved
// in DESIGN.md).
type Progress struct {
	mu sync.RWMutex

	status         Status
	stage          Stage
	filesTotal     int
	filesProcessed int
	chunksIndexed  int
	startTime      time.Time
	errorMessage   string
	fileErrors     int
}

// NewProgress returns a tracker initialized to the ready state; a
// full build calls SetStage to move it into StatusIndexing.
func NewProgress() *Progress {
	return &Progress{status: StatusReady, startTime: time.Now()}
}

func (p *Progress) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusIndexing
	p.stage = stage
	p.filesTotal = total
	if p.startTime.IsZero() {
		p.startTime = time.Now()
	}
}

func (p *Progress) UpdateFiles(processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesProcessed = processed
}

func (p *Progress) IncrementChunks(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunksIndexed += n
}

func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusError
	p.errorMessage = message
}

func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusReady
}

// RecordFileError counts a per-file failure without aborting the batch
// (spec.md §4.N's containment rule); it does not transition Status to
// StatusError, since the overall index remains usable.
func (p *Progress) RecordFileError(path string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fileErrors++
}

func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.filesTotal > 0 {
		pct = float64(p.filesProcessed) / float64(p.filesTotal) * 100
	}
	return Snapshot{
		Status:         string(p.status),
		Stage:          string(p.stage),
		FilesTotal:     p.filesTotal,
		FilesProcessed: p.filesProcessed,
		ChunksIndexed:  p.chunksIndexed,
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
		FileErrors:     p.fileErrors,
	}
}
