package scheduler

import (
	"log/slog"
	"time"
)

// EventType identifies a scheduler event.
type EventType string

const (
	// EventStateChanged is sent when the state or the activity pause changes.
	EventStateChanged EventType = "state_changed"
	// EventFileIndexed is sent after a file was (re)indexed.
	EventFileIndexed EventType = "file_indexed"
	// EventFileRemoved is sent after an indexed file was removed.
	EventFileRemoved EventType = "file_removed"
	// EventFileFailed is sent when indexing or removing a path failed.
	EventFileFailed EventType = "file_failed"
	// EventPassFinished is sent when the queue drains after a pass.
	EventPassFinished EventType = "pass_finished"
)

// Event is a status notification delivered to subscribers.
type Event struct {
	Type  EventType  `json:"type"`
	State State      `json:"state"`
	Path  string     `json:"path,omitempty"`
	Err   string     `json:"error,omitempty"`
	Pass  *PassStats `json:"pass,omitempty"`
	Time  time.Time  `json:"time"`
}

// subscriberBuffer is the per-subscriber channel capacity. Events beyond
// it are dropped for that subscriber.
const subscriberBuffer = 64

// Subscribe returns a channel of events and a cancel func that
// unsubscribes and closes the channel. Slow subscribers miss events; the
// scheduler never blocks on them.
func (s *Scheduler) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (s *Scheduler) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.Type != EventStateChanged {
		ev.State = s.State()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(ev)
}

// publishLocked delivers ev to every subscriber without blocking. s.mu must
// be held.
func (s *Scheduler) publishLocked(ev Event) {
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("scheduler_event_dropped",
				slog.Int("subscriber", id),
				slog.String("type", string(ev.Type)))
		}
	}
}
