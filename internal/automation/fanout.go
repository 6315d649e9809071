package automation

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
)

// Broadcaster pushes full state snapshots to registered observers.
//
// Publishing is split in two so the engine can build a snapshot under its
// own lock and deliver it after releasing that lock:
//
//	pub := b.begin()          // engine lock held
//	pub.snapshot = ...        // engine lock held
//	e.mu.Unlock()
//	pub.deliver()
//
// begin takes the publish lock and deliver releases it, so snapshots reach
// every observer in version order.
type Broadcaster struct {
	logger Logger
	events EventSink

	publishMu sync.Mutex
	version   uint64

	mu        sync.RWMutex
	observers map[SubscriptionID]Observer
}

// NewBroadcaster creates an empty observer registry. events may be nil.
func NewBroadcaster(events EventSink, logger Logger) *Broadcaster {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Broadcaster{
		logger:    logger,
		events:    events,
		observers: make(map[SubscriptionID]Observer),
	}
}

// publication is one in-flight broadcast.
type publication struct {
	b        *Broadcaster
	targets  []Observer
	snapshot facility.Snapshot
	events   []Event
}

// begin reserves the next version and captures the current observers.
// The caller must hold the engine lock and must call deliver exactly once.
func (b *Broadcaster) begin() *publication {
	b.publishMu.Lock()
	b.version++
	return &publication{b: b, targets: b.copyObservers()}
}

// beginEvents takes the publish lock for events that carry no snapshot.
// Observers are not notified and the version does not move.
func (b *Broadcaster) beginEvents(events ...Event) *publication {
	b.publishMu.Lock()
	return &publication{b: b, events: events}
}

// currentVersion is the version of the last published snapshot.
// The version only moves inside begin, so holding the engine lock is enough.
func (b *Broadcaster) currentVersion() uint64 {
	return b.version
}

// deliver sends the snapshot to every captured observer, then hands the
// events to the sink, and releases the publish lock.
func (p *publication) deliver() {
	defer p.b.publishMu.Unlock()

	for _, obs := range p.targets {
		p.b.notify(obs, p.snapshot)
	}
	if p.b.events != nil {
		for _, ev := range p.events {
			p.b.events.Record(ev)
		}
	}
}

// Count returns the number of registered observers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

func (b *Broadcaster) add(obs Observer) SubscriptionID {
	id := SubscriptionID(uuid.NewString())
	b.mu.Lock()
	b.observers[id] = obs
	b.mu.Unlock()
	return id
}

func (b *Broadcaster) remove(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.observers[id]; !ok {
		return false
	}
	delete(b.observers, id)
	return true
}

// copyObservers snapshots the registry so delivery never iterates a map
// that Subscribe or Unsubscribe may be changing.
func (b *Broadcaster) copyObservers() []Observer {
	b.mu.RLock()
	defer b.mu.RUnlock()

	targets := make([]Observer, 0, len(b.observers))
	for _, obs := range b.observers {
		targets = append(targets, obs)
	}
	return targets
}

// notify calls one observer and contains any panic it raises.
func (b *Broadcaster) notify(obs Observer, snap facility.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked", "panic", r, "version", snap.Version)
		}
	}()
	obs.Notify(snap)
}
