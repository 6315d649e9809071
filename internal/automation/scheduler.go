package automation

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler arms one-shot deferred actions keyed by room.
//
// The scheduler only manages timers. It does not know what a turn-off does;
// the fire callback supplied by the engine performs the check-then-act under
// the engine lock. A room may have several pending actions at once.
//
// Lock order: callers may hold the engine lock while calling Schedule,
// Cancel or Stop. Fire callbacks run with no scheduler lock held.
type Scheduler struct {
	clock  clockwork.Clock
	logger Logger

	mu      sync.Mutex
	pending map[int]map[uint64]clockwork.Timer
	seq     uint64
	stopped bool
}

// NewScheduler creates a scheduler driven by the given clock.
func NewScheduler(clock clockwork.Clock, logger Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		clock:   clock,
		logger:  logger,
		pending: make(map[int]map[uint64]clockwork.Timer),
	}
}

// Schedule arms fire(roomID) to run once after delay.
//
// A non-positive delay fires on a new goroutine straight away. Returns false
// if the scheduler has been stopped, in which case nothing is armed.
func (s *Scheduler) Schedule(roomID int, delay time.Duration, fire func(roomID int)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	if delay <= 0 {
		go fire(roomID)
		return true
	}

	s.seq++
	id := s.seq

	timer := s.clock.AfterFunc(delay, func() {
		// Drop the handle first; a Stop racing with this callback
		// will not find it and the fire is treated as consumed.
		s.mu.Lock()
		if _, ok := s.pending[roomID][id]; !ok {
			s.mu.Unlock()
			return
		}
		s.remove(roomID, id)
		s.mu.Unlock()

		fire(roomID)
	})

	timers, ok := s.pending[roomID]
	if !ok {
		timers = make(map[uint64]clockwork.Timer)
		s.pending[roomID] = timers
	}
	timers[id] = timer

	s.logger.Debug("deferred action scheduled", "room_id", roomID, "delay", delay.String(), "pending", len(timers))
	return true
}

// Cancel stops every pending action for the room and returns how many were
// stopped.
func (s *Scheduler) Cancel(roomID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, timer := range s.pending[roomID] {
		timer.Stop()
		delete(s.pending[roomID], id)
		n++
	}
	delete(s.pending, roomID)
	return n
}

// Pending returns the number of armed actions for the room.
func (s *Scheduler) Pending(roomID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[roomID])
}

// PendingTotal returns the number of armed actions across all rooms.
func (s *Scheduler) PendingTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, timers := range s.pending {
		n += len(timers)
	}
	return n
}

// Stop cancels every pending action and refuses new ones. Returns how many
// actions were cancelled. Safe to call more than once.
func (s *Scheduler) Stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for roomID, timers := range s.pending {
		for _, timer := range timers {
			timer.Stop()
			n++
		}
		delete(s.pending, roomID)
	}
	s.stopped = true
	return n
}

// remove deletes one handle. Caller must hold s.mu.
func (s *Scheduler) remove(roomID int, id uint64) {
	timers := s.pending[roomID]
	delete(timers, id)
	if len(timers) == 0 {
		delete(s.pending, roomID)
	}
}
