package scheduler

import (
	"sync"
	"time"
)

// PassStats counts the work done in one indexing pass. A pass starts when
// the worker picks up a request while idle and ends when the queue drains.
type PassStats struct {
	Folders   int           `json:"folders"`
	Indexed   int           `json:"indexed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Removed   int           `json:"removed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// ProgressSnapshot is an immutable view of scheduler progress.
type ProgressSnapshot struct {
	State            string     `json:"state"`
	Status           string     `json:"status"`
	PausedByActivity bool       `json:"paused_by_activity"`
	CurrentFolder    string     `json:"current_folder,omitempty"`
	QueuedFolders    int        `json:"queued_folders"`
	QueuedFiles      int        `json:"queued_files"`
	Pass             *PassStats `json:"pass,omitempty"`
	LastPass         *PassStats `json:"last_pass,omitempty"`
	PassesCompleted  int        `json:"passes_completed"`
	TotalIndexed     int        `json:"total_indexed"`
	TotalFailed      int        `json:"total_failed"`
}

// progress tracks pass counters. It has its own lock so counting never
// contends with queue operations.
type progress struct {
	mu        sync.RWMutex
	pass      *PassStats
	last      *PassStats
	completed int
	indexed   int
	failed    int
}

func (p *progress) begin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pass == nil {
		p.pass = &PassStats{StartedAt: time.Now()}
	}
}

func (p *progress) update(fn func(*PassStats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pass == nil {
		p.pass = &PassStats{StartedAt: time.Now()}
	}
	before := *p.pass
	fn(p.pass)
	p.indexed += p.pass.Indexed - before.Indexed
	p.failed += p.pass.Failed - before.Failed
}

// finish closes the running pass and returns it; ok is false when no pass
// was running.
func (p *progress) finish() (PassStats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pass == nil {
		return PassStats{}, false
	}
	st := *p.pass
	st.Duration = time.Since(st.StartedAt)
	p.last = &st
	p.pass = nil
	p.completed++
	return st, true
}

func (p *progress) fill(snap *ProgressSnapshot) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pass != nil {
		cp := *p.pass
		snap.Pass = &cp
	}
	if p.last != nil {
		cp := *p.last
		snap.LastPass = &cp
	}
	snap.PassesCompleted = p.completed
	snap.TotalIndexed = p.indexed
	snap.TotalFailed = p.failed
}
