package watch

import (
	"log/slog"
	"sync"
	"time"
)

// op is the kind of change pending for one path, coalesced from raw
// filesystem events.
type op int

const (
	opModify op = iota
	opDelete
)

// Debouncer coalesces rapid per-path events within a fixed window,
// matching spec.md §4.N's "collapse bursts of events... into a single
// debounced batch" rule:
//   - modify + modify = modify
//   - modify + delete = delete
//   - delete + modify = modify (the path was recreated)
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]op
	timers  map[string]*time.Timer
	stopped bool
	output  chan map[string]op
}

// NewDebouncer builds a Debouncer flushing every window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]op),
		timers:  make(map[string]*time.Timer),
		output:  make(chan map[string]op, 10),
	}
}

// Add records a raw event for path, coalescing with anything pending
// for that path. Each path has its own quiet-period timer, so activity
// on one path never delays another path's flush (spec.md §4.N).
func (d *Debouncer) Add(path string, o op) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending[path] = o
	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	d.timers[path] = time.AfterFunc(d.window, func() { d.flush(path) })
}

func (d *Debouncer) flush(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.timers, path)
	o, ok := d.pending[path]
	if d.stopped || !ok {
		return
	}
	delete(d.pending, path)

	batch := map[string]op{path: o}
	select {
	case d.output <- batch:
	default:
		slog.Warn("watch: debounce output full, dropping batch", slog.String("path", path))
	}
}

// Output returns the channel of coalesced batches.
func (d *Debouncer) Output() <-chan map[string]op {
	return d.output
}

// Stop halts the debouncer and closes Output.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	for _, t := range d.timers {
		t.Stop()
	}
	close(d.output)
}
