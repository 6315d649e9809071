package sensor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/mqtt"
)

const defaultEventBuffer = 128

// Publisher is the MQTT surface StatePublisher needs. *mqtt.Client
// satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// StatePublisher mirrors engine output to MQTT. Snapshots are coalesced:
// only the newest pending snapshot is published. Events are queued and
// dropped when the queue is full.
type StatePublisher struct {
	pub    Publisher
	logger Logger

	mu      sync.Mutex
	latest  *facility.Snapshot
	pending chan struct{}

	events  chan automation.Event
	dropped atomic.Uint64
}

// NewStatePublisher creates a publisher. Register it with Engine.Subscribe
// and pass it as (part of) the engine's EventSink, then call Run.
func NewStatePublisher(pub Publisher, logger Logger) *StatePublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &StatePublisher{
		pub:     pub,
		logger:  logger,
		pending: make(chan struct{}, 1),
		events:  make(chan automation.Event, defaultEventBuffer),
	}
}

// Notify implements automation.Observer.
func (p *StatePublisher) Notify(snap facility.Snapshot) {
	p.mu.Lock()
	if p.latest == nil || snap.Version >= p.latest.Version {
		p.latest = &snap
	}
	p.mu.Unlock()

	select {
	case p.pending <- struct{}{}:
	default:
	}
}

// Record implements automation.EventSink.
func (p *StatePublisher) Record(ev automation.Event) {
	select {
	case p.events <- ev:
	default:
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			p.logger.Warn("mqtt event queue full, dropping events", "dropped_total", n)
		}
	}
}

// Dropped returns how many events were discarded.
func (p *StatePublisher) Dropped() uint64 { return p.dropped.Load() }

// Run publishes until ctx is cancelled, then flushes what is queued.
func (p *StatePublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return nil
		case <-p.pending:
			p.publishSnapshot()
		case ev := <-p.events:
			p.publishEvent(ev)
		}
	}
}

func (p *StatePublisher) flush() {
	for {
		select {
		case ev := <-p.events:
			p.publishEvent(ev)
		default:
			p.publishSnapshot()
			return
		}
	}
}

func (p *StatePublisher) publishSnapshot() {
	p.mu.Lock()
	snap := p.latest
	p.latest = nil
	p.mu.Unlock()

	if snap == nil {
		return
	}
	if err := p.pub.PublishJSON(mqtt.Topics{}.FacilityState(), snap, true); err != nil {
		p.logger.Warn("publishing facility state", "version", snap.Version, "error", err)
	}
}

func (p *StatePublisher) publishEvent(ev automation.Event) {
	if err := p.pub.PublishJSON(mqtt.Topics{}.CoreEvent(string(ev.Type)), ev, false); err != nil {
		p.logger.Warn("publishing automation event", "type", string(ev.Type), "error", err)
	}
}
