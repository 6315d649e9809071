package automation

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
)

// Logger defines the logging interface used by the Engine, Scheduler and
// ShutdownChecker. This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Source identifies who requested a state change.
type Source string

const (
	// SourceManual is an operator request (HTTP API, wall panel).
	SourceManual Source = "manual"

	// SourceSensor is an occupancy sensor, simulated or bridged over MQTT.
	// Sensor-driven occupancy switches the room's lights on.
	SourceSensor Source = "sensor"

	// SourceSchedule is the inactivity timer or the daily shutdown check.
	SourceSchedule Source = "schedule"

	// SourceSystem is the engine itself (start-up, shutdown).
	SourceSystem Source = "system"
)

// DeferredPolicy controls what happens to a room's pending turn-off actions
// when its occupancy is written again.
type DeferredPolicy string

const (
	// PolicyIndependent leaves earlier turn-offs armed. Each one re-checks
	// occupancy when it fires and does nothing if the room is occupied.
	PolicyIndependent DeferredPolicy = "independent"

	// PolicySupersede cancels a room's pending turn-offs on every occupancy
	// write, so appliances never switch off earlier than one full window
	// after the room was last seen vacant.
	PolicySupersede DeferredPolicy = "supersede"
)

// ValidPolicy reports whether p is a known deferred policy.
func ValidPolicy(p DeferredPolicy) bool {
	return p == PolicyIndependent || p == PolicySupersede
}

// Observer receives full state snapshots.
//
// Notify is called with the engine's publish lock held so that snapshots
// arrive in version order. Implementations must return quickly and must not
// call back into the Engine. The snapshot is shared between observers and
// must be treated as read-only.
type Observer interface {
	Notify(snapshot facility.Snapshot)
}

// SubscriptionID identifies a registered observer.
type SubscriptionID string

// EventType names an automation event.
type EventType string

const (
	EventOccupancyChanged  EventType = "occupancy_changed"
	EventApplianceChanged  EventType = "appliance_changed"
	EventAutoOffFired      EventType = "auto_off_fired"
	EventAutoOffSkipped    EventType = "auto_off_skipped"
	EventEmergencyShutdown EventType = "emergency_shutdown"
	EventDailyShutdown     EventType = "daily_shutdown"
	EventSettingsUpdated   EventType = "settings_updated"
	EventEngineStopped     EventType = "engine_stopped"
)

// Event describes one thing the engine did. Events feed the history log and
// the MQTT event topics; observers of full state use snapshots instead.
type Event struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	At          time.Time      `json:"at"`
	Source      Source         `json:"source"`
	RoomID      *int           `json:"room_id,omitempty"`
	ApplianceID *int           `json:"appliance_id,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"`
}

// EventSink receives engine events. Record must not block.
type EventSink interface {
	Record(event Event)
}

// MultiSink forwards each event to every non-nil sink in order.
type MultiSink []EventSink

// Record implements EventSink.
func (m MultiSink) Record(event Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Record(event)
		}
	}
}

// newEvent builds an event with a fresh ID.
func newEvent(typ EventType, at time.Time, source Source) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   typ,
		At:     at.UTC(),
		Source: source,
	}
}

func intPtr(v int) *int {
	return &v
}
