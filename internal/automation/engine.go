package automation

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
)

// Options configures a new Engine.
type Options struct {
	// Rooms is the fixed catalog. It is deep-copied; the caller keeps
	// ownership of the slice.
	Rooms []facility.Room

	// Settings are the initial automation settings.
	Settings facility.Settings

	// Clock drives timestamps and deferred actions. Defaults to the real clock.
	Clock clockwork.Clock

	// Location is the site timezone used for the daily shutdown comparison.
	// Defaults to time.Local.
	Location *time.Location

	// Policy selects how repeated occupancy writes treat pending turn-offs.
	// Defaults to PolicyIndependent.
	Policy DeferredPolicy

	// Events receives an Event for every mutation. May be nil.
	Events EventSink

	// Logger defaults to a no-op logger.
	Logger Logger
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(snapshot facility.Snapshot)

// Notify calls f(snapshot).
func (f ObserverFunc) Notify(snapshot facility.Snapshot) {
	f(snapshot)
}

// applianceRef locates an appliance inside e.rooms.
type applianceRef struct {
	room  int
	index int
}

// Engine owns the facility state and applies the occupancy automation policy.
//
// All room, appliance, settings and status data sit behind e.mu. Every
// mutation and the scheduling of its deferred turn-off happen in one critical
// section, and every mutation ends in a broadcast.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Engine struct {
	clock    clockwork.Clock
	location *time.Location
	policy   DeferredPolicy
	logger   Logger

	scheduler *Scheduler
	fanout    *Broadcaster

	mu          sync.Mutex
	rooms       []*facility.Room
	roomIndex   map[int]int
	appliances  map[int]applianceRef
	settings    facility.Settings
	status      facility.SystemStatus
	lastDailyAt string // site-local minute of the last daily shutdown
	closed      bool
}

// NewEngine validates the catalog and settings and returns a running engine.
func NewEngine(opts Options) (*Engine, error) {
	if err := facility.ValidateCatalog(opts.Rooms); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if opts.Policy == "" {
		opts.Policy = PolicyIndependent
	}
	if !ValidPolicy(opts.Policy) {
		return nil, fmt.Errorf("%w: unknown deferred policy %q", ErrInvalidOptions, opts.Policy)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	e := &Engine{
		clock:      opts.Clock,
		location:   opts.Location,
		policy:     opts.Policy,
		logger:     opts.Logger,
		scheduler:  NewScheduler(opts.Clock, opts.Logger),
		fanout:     NewBroadcaster(opts.Events, opts.Logger),
		rooms:      make([]*facility.Room, 0, len(opts.Rooms)),
		roomIndex:  make(map[int]int, len(opts.Rooms)),
		appliances: make(map[int]applianceRef),
		settings:   opts.Settings,
		status: facility.SystemStatus{
			Online:       true,
			LastUpdateAt: opts.Clock.Now().UTC(),
		},
	}

	for i := range opts.Rooms {
		r := opts.Rooms[i].DeepCopy()
		e.roomIndex[r.ID] = len(e.rooms)
		for j, a := range r.Appliances {
			// First match in room-then-appliance order wins.
			if _, seen := e.appliances[a.ID]; !seen {
				e.appliances[a.ID] = applianceRef{room: len(e.rooms), index: j}
			}
		}
		e.rooms = append(e.rooms, r)
	}

	return e, nil
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() facility.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.fanout.currentVersion())
}

// Room returns a copy of one room.
func (e *Engine) Room(roomID int) (facility.Room, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, ok := e.roomIndex[roomID]
	if !ok {
		return facility.Room{}, fmt.Errorf("%w: %d", ErrRoomNotFound, roomID)
	}
	return *e.rooms[idx].DeepCopy(), nil
}

// Settings returns the current settings.
func (e *Engine) Settings() facility.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// SetOccupancy records a room's occupancy.
//
// When occupied, lastActivityAt becomes now; otherwise it is cleared and a
// turn-off is scheduled using the inactivity window in force at this moment.
// A sensor-sourced occupied write also switches the room's lights on.
// The write always broadcasts, even if the flag did not change.
func (e *Engine) SetOccupancy(roomID int, occupied bool, source Source) (facility.Room, error) {
	e.mu.Lock()

	idx, ok := e.roomIndex[roomID]
	if !ok {
		e.mu.Unlock()
		return facility.Room{}, fmt.Errorf("%w: %d", ErrRoomNotFound, roomID)
	}
	room := e.rooms[idx]
	now := e.clock.Now().UTC()

	if e.policy == PolicySupersede {
		if n := e.scheduler.Cancel(roomID); n > 0 {
			e.logger.Debug("superseded pending turn-offs", "room_id", roomID, "cancelled", n)
		}
	}

	previous := room.Occupied
	room.Occupied = occupied
	if occupied {
		ts := now
		room.LastActivityAt = &ts
	} else {
		room.LastActivityAt = nil
	}

	ev := newEvent(EventOccupancyChanged, now, source)
	ev.RoomID = intPtr(roomID)
	ev.Detail = map[string]any{"occupied": occupied, "previous": previous}

	if occupied && source == SourceSensor {
		lit := 0
		for i := range room.Appliances {
			if room.Appliances[i].Category == facility.CategoryLight && !room.Appliances[i].State.IsOn() {
				room.Appliances[i].State = facility.StateOn
				lit++
			}
		}
		ev.Detail["lights_on"] = lit
	}

	if !occupied {
		window := e.settings.InactivityWindow()
		if e.scheduler.Schedule(roomID, window, e.fireAutoOff) {
			ev.Detail["auto_off_in"] = window.String()
		}
	}

	e.status.LastUpdateAt = now
	result := *room.DeepCopy()

	e.logger.Info("occupancy updated", "room_id", roomID, "occupied", occupied, "source", string(source))
	e.publishLocked(ev)
	return result, nil
}

// ControlAppliance sets one appliance's power state.
//
// Unknown IDs return ErrApplianceNotFound without broadcasting. Occupancy
// is not touched.
func (e *Engine) ControlAppliance(applianceID int, state facility.PowerState, source Source) (facility.Appliance, error) {
	if !facility.ValidPowerState(state) {
		return facility.Appliance{}, fmt.Errorf("%w: %q", ErrInvalidPowerState, state)
	}

	e.mu.Lock()

	ref, ok := e.appliances[applianceID]
	if !ok {
		e.mu.Unlock()
		return facility.Appliance{}, fmt.Errorf("%w: %d", ErrApplianceNotFound, applianceID)
	}
	room := e.rooms[ref.room]
	appliance := &room.Appliances[ref.index]
	now := e.clock.Now().UTC()

	previous := appliance.State
	appliance.State = state
	e.status.LastUpdateAt = now
	result := *appliance

	ev := newEvent(EventApplianceChanged, now, source)
	ev.RoomID = intPtr(room.ID)
	ev.ApplianceID = intPtr(applianceID)
	ev.Detail = map[string]any{"state": string(state), "previous": string(previous)}

	e.logger.Info("appliance updated", "appliance_id", applianceID, "room_id", room.ID, "state", string(state))
	e.publishLocked(ev)
	return result, nil
}

// EmergencyShutdown switches every appliance off. It cannot fail.
func (e *Engine) EmergencyShutdown(source Source) {
	e.mu.Lock()

	now := e.clock.Now().UTC()
	n := e.allOffLocked()
	e.status.LastUpdateAt = now

	ev := newEvent(EventEmergencyShutdown, now, source)
	ev.Detail = map[string]any{"switched_off": n}

	e.logger.Warn("emergency shutdown", "switched_off", n, "source", string(source))
	e.publishLocked(ev)
}

// UpdateSettings applies a partial update and returns the resulting settings.
//
// Zero and empty fields in the patch are treated as absent, see
// facility.SettingsPatch. Values that pass through are validated; the
// update is rejected as a whole if the result is invalid. A pending
// turn-off keeps the window it was scheduled with.
func (e *Engine) UpdateSettings(patch facility.SettingsPatch) (facility.Settings, error) {
	e.mu.Lock()

	next, changed := patch.Apply(e.settings)
	if err := next.Validate(); err != nil {
		current := e.settings
		e.mu.Unlock()
		return current, err
	}

	now := e.clock.Now().UTC()
	e.settings = next

	ev := newEvent(EventSettingsUpdated, now, SourceManual)
	ev.Detail = map[string]any{"changed": changed}

	e.logger.Info("settings updated", "changed", changed)
	e.publishLocked(ev)
	return next, nil
}

// Subscribe registers an observer and immediately delivers the current
// snapshot to it, and only to it.
func (e *Engine) Subscribe(obs Observer) SubscriptionID {
	e.mu.Lock()
	e.fanout.publishMu.Lock()

	snap := e.snapshotLocked(e.fanout.currentVersion())
	id := e.fanout.add(obs)
	e.mu.Unlock()

	e.fanout.notify(obs, snap)
	e.fanout.publishMu.Unlock()

	e.logger.Debug("observer subscribed", "subscription_id", string(id))
	return id
}

// Unsubscribe removes an observer. Returns false if the ID is unknown.
func (e *Engine) Unsubscribe(id SubscriptionID) bool {
	ok := e.fanout.remove(id)
	if ok {
		e.logger.Debug("observer unsubscribed", "subscription_id", string(id))
	}
	return ok
}

// ObserverCount returns the number of registered observers.
func (e *Engine) ObserverCount() int {
	return e.fanout.Count()
}

// PendingTurnOffs returns the number of armed deferred turn-offs.
func (e *Engine) PendingTurnOffs() int {
	return e.scheduler.PendingTotal()
}

// CheckDailyShutdown switches everything off if now, in the site timezone,
// falls inside the configured shutdown minute. It fires at most once per
// matching minute and reports whether it fired. A missed minute is not
// caught up.
func (e *Engine) CheckDailyShutdown(now time.Time) bool {
	e.mu.Lock()

	local := now.In(e.location)
	if e.closed || !e.settings.AutoShutdownTime.Matches(local) {
		e.mu.Unlock()
		return false
	}

	minute := local.Format("2006-01-02T15:04")
	if minute == e.lastDailyAt {
		e.mu.Unlock()
		return false
	}
	e.lastDailyAt = minute

	n := e.allOffLocked()
	e.status.LastUpdateAt = now.UTC()

	ev := newEvent(EventDailyShutdown, now, SourceSchedule)
	ev.Detail = map[string]any{"switched_off": n, "shutdown_time": e.settings.AutoShutdownTime.String()}

	e.logger.Info("daily shutdown", "switched_off", n, "at", minute)
	e.publishLocked(ev)
	return true
}

// Close cancels pending turn-offs, marks the system offline and broadcasts
// a final snapshot. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true

	cancelled := e.scheduler.Stop()
	now := e.clock.Now().UTC()
	e.status.Online = false
	e.status.LastUpdateAt = now

	ev := newEvent(EventEngineStopped, now, SourceSystem)
	ev.Detail = map[string]any{"cancelled_turn_offs": cancelled}

	e.logger.Info("automation engine stopped", "cancelled_turn_offs", cancelled)
	e.publishLocked(ev)
	return nil
}

// fireAutoOff is the deferred turn-off. It re-reads occupancy under the
// engine lock and does nothing if the room is occupied again.
func (e *Engine) fireAutoOff(roomID int) {
	e.mu.Lock()

	idx, ok := e.roomIndex[roomID]
	if !ok || e.closed {
		e.mu.Unlock()
		return
	}
	room := e.rooms[idx]
	now := e.clock.Now().UTC()

	if room.Occupied {
		ev := newEvent(EventAutoOffSkipped, now, SourceSchedule)
		ev.RoomID = intPtr(roomID)

		// No state changed, so no snapshot; the event still queues behind
		// any publication in flight.
		pub := e.fanout.beginEvents(ev)
		e.mu.Unlock()

		e.logger.Debug("stale turn-off skipped", "room_id", roomID)
		pub.deliver()
		return
	}

	n := 0
	for i := range room.Appliances {
		if room.Appliances[i].State.IsOn() {
			room.Appliances[i].State = facility.StateOff
			n++
		}
	}
	e.status.LastUpdateAt = now

	ev := newEvent(EventAutoOffFired, now, SourceSchedule)
	ev.RoomID = intPtr(roomID)
	ev.Detail = map[string]any{"switched_off": n}

	e.logger.Info("inactivity turn-off", "room_id", roomID, "switched_off", n)
	e.publishLocked(ev)
}

// allOffLocked switches every appliance off and returns how many changed.
// Caller must hold e.mu.
func (e *Engine) allOffLocked() int {
	n := 0
	for _, r := range e.rooms {
		for i := range r.Appliances {
			if r.Appliances[i].State.IsOn() {
				r.Appliances[i].State = facility.StateOff
				n++
			}
		}
	}
	return n
}

// publishLocked builds the next snapshot and delivers it. It must be called
// with e.mu held and returns with e.mu released.
func (e *Engine) publishLocked(events ...Event) {
	pub := e.fanout.begin()
	pub.snapshot = e.snapshotLocked(e.fanout.currentVersion())
	pub.events = events
	e.mu.Unlock()

	pub.deliver()
}

// snapshotLocked copies the state. Caller must hold e.mu.
func (e *Engine) snapshotLocked(version uint64) facility.Snapshot {
	rooms := make([]facility.Room, len(e.rooms))
	for i, r := range e.rooms {
		rooms[i] = *r.DeepCopy()
	}
	return facility.Snapshot{
		Version:      version,
		Rooms:        rooms,
		Settings:     e.settings,
		Stats:        facility.ComputeStats(rooms),
		SystemStatus: e.status,
	}
}
