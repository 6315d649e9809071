package sensor

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/mqtt"
)

// Subscriber is the MQTT surface MQTTSource needs. *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// occupancyMessage is the payload on graylogic/sensor/occupancy/{room_id}.
type occupancyMessage struct {
	Occupied *bool `json:"occupied"`
}

// MQTTSource applies occupancy messages from the broker to the engine.
type MQTTSource struct {
	target OccupancyWriter
	sub    Subscriber
	qos    byte
	logger Logger
}

// NewMQTTSource creates a source. Call Start to subscribe.
func NewMQTTSource(target OccupancyWriter, sub Subscriber, qos byte, logger Logger) *MQTTSource {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTSource{target: target, sub: sub, qos: qos, logger: logger}
}

// Start subscribes to every room's occupancy topic.
func (s *MQTTSource) Start() error {
	topic := mqtt.Topics{}.AllOccupancySensors()
	if err := s.sub.Subscribe(topic, s.qos, s.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	s.logger.Info("listening for occupancy sensors", "topic", topic)
	return nil
}

// Stop unsubscribes.
func (s *MQTTSource) Stop() error {
	return s.sub.Unsubscribe(mqtt.Topics{}.AllOccupancySensors())
}

// HandleMessage decodes one sensor message and writes it to the engine.
// Returned errors are logged by the MQTT client.
func (s *MQTTSource) HandleMessage(topic string, payload []byte) error {
	roomID, err := mqtt.ParseOccupancyTopic(topic)
	if err != nil {
		return err
	}

	var msg occupancyMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.Occupied == nil {
		return fmt.Errorf("%w: missing \"occupied\"", ErrInvalidPayload)
	}

	if _, err := s.target.SetOccupancy(roomID, *msg.Occupied, automation.SourceSensor); err != nil {
		return fmt.Errorf("room %d: %w", roomID, err)
	}
	s.logger.Debug("sensor occupancy applied", "room_id", roomID, "occupied", *msg.Occupied)
	return nil
}
