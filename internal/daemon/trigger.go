package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/semdesk/internal/scheduler"
)

// sweeper is the part of the graph maintainer the trigger drives.
type sweeper interface {
	Trigger()
}

// maintenanceTrigger requests a graph maintenance sweep once indexing that
// changed the store has been quiet for delay, at most once per cooldown.
// Reindexing leaves the previous graph of every touched file empty, so a
// sweep after a busy pass reclaims them.
type maintenanceTrigger struct {
	target   sweeper
	delay    time.Duration
	cooldown time.Duration
	now      func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	last    time.Time
	fired   int
	stopped bool
}

func newMaintenanceTrigger(target sweeper, delay, cooldown time.Duration) *maintenanceTrigger {
	return &maintenanceTrigger{
		target:   target,
		delay:    delay,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Name identifies the trigger in the service registry.
func (t *maintenanceTrigger) Name() string { return "maintenance-trigger" }

// Start implements service.Service.
func (t *maintenanceTrigger) Start(context.Context) error { return nil }

// Stop cancels a pending trigger.
func (t *maintenanceTrigger) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return nil
}

// OnPassFinished arms the idle timer after a pass that changed the store.
func (t *maintenanceTrigger) OnPassFinished(st scheduler.PassStats) {
	if st.Indexed == 0 && st.Removed == 0 {
		return
	}
	t.schedule(t.delay)
}

func (t *maintenanceTrigger) schedule(after time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(after, t.fire)
}

func (t *maintenanceTrigger) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	if !t.last.IsZero() {
		if wait := t.cooldown - t.now().Sub(t.last); wait > 0 {
			t.mu.Unlock()
			slog.Debug("maintenance_trigger_deferred", slog.Duration("wait", wait))
			t.schedule(wait)
			return
		}
	}
	t.last = t.now()
	t.fired++
	t.mu.Unlock()

	slog.Debug("maintenance_triggered")
	t.target.Trigger()
}

func (t *maintenanceTrigger) firedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
