package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic namespace roots.
const (
	// TopicPrefixSensor is where occupancy sensors and gateways publish.
	TopicPrefixSensor = "graylogic/sensor"

	// TopicPrefixCore is where the engine publishes state and events.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixSystem carries service status (online/offline, LWT).
	TopicPrefixSystem = "graylogic/system"
)

// Topics builds MQTT topic strings. It has no state; use the zero value.
//
// Example:
//
//	topics := mqtt.Topics{}
//	sensorTopic := topics.OccupancySensor(2) // graylogic/sensor/occupancy/2
type Topics struct{}

// OccupancySensor returns the inbound topic for one room's occupancy sensor.
// Payload: {"occupied": true|false}
func (Topics) OccupancySensor(roomID int) string {
	return fmt.Sprintf("%s/occupancy/%d", TopicPrefixSensor, roomID)
}

// AllOccupancySensors matches every room's occupancy sensor topic.
func (Topics) AllOccupancySensors() string {
	return TopicPrefixSensor + "/occupancy/+"
}

// FacilityState is the retained topic carrying the latest facility snapshot.
func (Topics) FacilityState() string {
	return TopicPrefixCore + "/facility/state"
}

// CoreEvent returns the topic for one automation event type.
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// AllCoreEvents matches every automation event topic.
func (Topics) AllCoreEvents() string {
	return TopicPrefixCore + "/event/+"
}

// SystemStatus is the retained online/offline topic, also used for the LWT.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// ParseOccupancyTopic extracts the room id from an occupancy sensor topic.
func ParseOccupancyTopic(topic string) (int, error) {
	prefix := TopicPrefixSensor + "/occupancy/"
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return 0, fmt.Errorf("%w: %q is not an occupancy topic", ErrInvalidTopic, topic)
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad room id in %q", ErrInvalidTopic, topic)
	}
	return id, nil
}
