package automation

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newFireRecorder() (chan int, func(int)) {
	ch := make(chan int, 16)
	return ch, func(roomID int) { ch <- roomID }
}

func waitFire(t *testing.T, ch chan int) int {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deferred action")
		return 0
	}
}

func TestScheduler_FiresAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testStart)
	s := NewScheduler(clock, nil)
	fired, fire := newFireRecorder()

	if !s.Schedule(7, time.Minute, fire) {
		t.Fatal("Schedule() = false on a running scheduler")
	}
	if s.Pending(7) != 1 {
		t.Fatalf("Pending(7) = %d, want 1", s.Pending(7))
	}

	clock.Advance(59 * time.Second)
	select {
	case <-fired:
		t.Fatal("fired before delay elapsed")
	default:
	}

	clock.Advance(time.Second)
	if got := waitFire(t, fired); got != 7 {
		t.Errorf("fired room = %d, want 7", got)
	}
	if s.PendingTotal() != 0 {
		t.Errorf("PendingTotal() = %d after fire, want 0", s.PendingTotal())
	}
}

func TestScheduler_NonPositiveDelayFiresImmediately(t *testing.T) {
	s := NewScheduler(clockwork.NewFakeClockAt(testStart), nil)
	fired, fire := newFireRecorder()

	s.Schedule(3, 0, fire)
	if got := waitFire(t, fired); got != 3 {
		t.Errorf("fired room = %d, want 3", got)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testStart)
	s := NewScheduler(clock, nil)
	fired, fire := newFireRecorder()

	s.Schedule(1, time.Minute, fire)
	s.Schedule(1, 2*time.Minute, fire)
	s.Schedule(2, time.Minute, fire)

	if n := s.Cancel(1); n != 2 {
		t.Errorf("Cancel(1) = %d, want 2", n)
	}
	if s.Pending(1) != 0 || s.Pending(2) != 1 {
		t.Errorf("Pending after cancel: room1=%d room2=%d", s.Pending(1), s.Pending(2))
	}

	clock.Advance(5 * time.Minute)
	if got := waitFire(t, fired); got != 2 {
		t.Errorf("fired room = %d, want 2", got)
	}
	select {
	case id := <-fired:
		t.Errorf("cancelled action for room %d fired", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_Stop(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testStart)
	s := NewScheduler(clock, nil)
	fired, fire := newFireRecorder()

	s.Schedule(1, time.Minute, fire)
	s.Schedule(2, time.Minute, fire)

	if n := s.Stop(); n != 2 {
		t.Errorf("Stop() = %d, want 2", n)
	}
	if s.Stop() != 0 {
		t.Error("second Stop() cancelled actions")
	}
	if s.Schedule(3, time.Minute, fire) {
		t.Error("Schedule() after Stop = true")
	}

	clock.Advance(time.Hour)
	select {
	case id := <-fired:
		t.Errorf("action for room %d fired after Stop", id)
	case <-time.After(50 * time.Millisecond):
	}
}
