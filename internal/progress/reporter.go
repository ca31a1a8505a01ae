package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// Title is printed once when the reporter starts.
	Title string

	// Unit names the tasks being counted, e.g. "regions".
	// Default: "tasks"
	Unit string

	// Total is the number of tasks.
	Total int

	// Workers is the number of parallel workers (for display).
	Workers int

	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Reporter outputs human-readable progress information. Its counters are safe
// for concurrent use by workers.
type Reporter struct {
	opts Options

	mu         sync.Mutex
	completed  atomic.Int32
	failed     atomic.Int32
	inProgress atomic.Int32
	records    atomic.Int64
	startTime  time.Time
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	stopped    bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}
	if opts.Unit == "" {
		opts.Unit = "tasks"
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.mu.Unlock()

	if r.opts.Title != "" {
		fmt.Fprintf(r.opts.Output, "[aicte] %s\n", r.opts.Title)
	}
	fmt.Fprintf(r.opts.Output, "[aicte] %d %s | Workers: %d\n", r.opts.Total, r.opts.Unit, r.opts.Workers)

	go r.updateLoop()
}

// Stop prints the final status and stops the reporter. It is safe to call
// more than once.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped || !r.started {
		r.stopped = true
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// Started marks a task as in progress.
func (r *Reporter) Started() {
	r.inProgress.Add(1)
}

// Completed marks a task as done and adds its record count.
func (r *Reporter) Completed(records int) {
	r.records.Add(int64(records))
	r.completed.Add(1)
	r.inProgress.Add(-1)
}

// Failed marks a task as failed.
func (r *Reporter) Failed() {
	r.failed.Add(1)
	r.inProgress.Add(-1)
}

// Snapshot returns the current counters.
func (r *Reporter) Snapshot() Counts {
	done := int(r.completed.Load())
	failed := int(r.failed.Load())
	inProgress := int(r.inProgress.Load())
	pending := r.opts.Total - done - failed - inProgress
	if pending < 0 {
		pending = 0
	}
	return Counts{
		Completed:  done,
		Failed:     failed,
		InProgress: inProgress,
		Pending:    pending,
		Records:    r.records.Load(),
	}
}

// Counts is a point-in-time view of a Reporter.
type Counts struct {
	Completed  int
	Failed     int
	InProgress int
	Pending    int
	Records    int64
}

func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Reporter) printProgress() {
	c := r.Snapshot()

	var percent float64
	if r.opts.Total > 0 {
		percent = float64(c.Completed+c.Failed) / float64(r.opts.Total) * 100
	}

	fmt.Fprintf(r.opts.Output, "\r[aicte] Progress: %.1f%% | %d completed | %d failed | %d in-progress | %d pending | %d records    ",
		percent,
		c.Completed,
		c.Failed,
		c.InProgress,
		c.Pending,
		c.Records,
	)
}

func (r *Reporter) printFinalStatus() {
	c := r.Snapshot()
	duration := time.Since(r.startTime)

	fmt.Fprintf(r.opts.Output, "\r[aicte] Done: %d completed | %d failed | %d records    \n",
		c.Completed,
		c.Failed,
		c.Records,
	)
	fmt.Fprintf(r.opts.Output, "[aicte] Total time: %s\n", formatDuration(duration))
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
