package history

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
)

const (
	defaultBufferSize   = 256
	defaultPruneEvery   = time.Hour
	insertTimeout       = 5 * time.Second
	pruneTimeout        = 30 * time.Second
	defaultRetentionAge = 30 * 24 * time.Hour
)

// Logger is the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RecorderOptions configures a Recorder. Zero values take defaults.
type RecorderOptions struct {
	BufferSize int
	Retention  time.Duration
	PruneEvery time.Duration
	Clock      clockwork.Clock
	Logger     Logger
}

// Recorder is an automation.EventSink that writes events to a Store from a
// background goroutine. Record never blocks: when the queue is full the
// event is dropped and counted.
type Recorder struct {
	store      Store
	queue      chan automation.Event
	retention  time.Duration
	pruneEvery time.Duration
	clock      clockwork.Clock
	logger     Logger

	dropped atomic.Uint64
	written atomic.Uint64

	done chan struct{}
}

// NewRecorder creates a recorder. Call Run to start writing.
func NewRecorder(store Store, opts RecorderOptions) *Recorder {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetentionAge
	}
	if opts.PruneEvery <= 0 {
		opts.PruneEvery = defaultPruneEvery
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Recorder{
		store:      store,
		queue:      make(chan automation.Event, opts.BufferSize),
		retention:  opts.Retention,
		pruneEvery: opts.PruneEvery,
		clock:      opts.Clock,
		logger:     opts.Logger,
		done:       make(chan struct{}),
	}
}

// Record queues an event for writing.
func (r *Recorder) Record(ev automation.Event) {
	select {
	case r.queue <- ev:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.logger.Warn("history queue full, dropping events", "dropped_total", n)
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Written returns how many events have been stored.
func (r *Recorder) Written() uint64 { return r.written.Load() }

// Run writes queued events and prunes old ones until ctx is cancelled, then
// drains whatever is still queued. It returns nil on cancellation.
func (r *Recorder) Run(ctx context.Context) error {
	defer close(r.done)

	ticker := r.clock.NewTicker(r.pruneEvery)
	defer ticker.Stop()

	r.prune()

	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case ev := <-r.queue:
			r.write(ev)
		case <-ticker.Chan():
			r.prune()
		}
	}
}

// Done is closed when Run has returned.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

func (r *Recorder) drain() {
	for {
		select {
		case ev := <-r.queue:
			r.write(ev)
		default:
			return
		}
	}
}

func (r *Recorder) write(ev automation.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := r.store.Insert(ctx, ev); err != nil {
		r.logger.Error("writing history event", "error", err, "event_id", ev.ID, "type", string(ev.Type))
		return
	}
	r.written.Add(1)
}

func (r *Recorder) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	cutoff := r.clock.Now().Add(-r.retention)
	n, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		r.logger.Error("pruning history", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("history pruned", "deleted", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
}
