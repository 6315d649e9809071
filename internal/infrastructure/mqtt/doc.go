// Package mqtt connects the occupancy engine to an MQTT broker.
//
// It owns the broker connection (auto-reconnect, subscription restore, LWT)
// and the topic layout. Domain wiring lives in the sensor package: occupancy
// sensors publish to graylogic/sensor/occupancy/{room_id} and the engine
// publishes its retained snapshot and its events under graylogic/core.
//
//	sensors ──► graylogic/sensor/occupancy/+ ──► engine
//	engine  ──► graylogic/core/facility/state (retained)
//	        ──► graylogic/core/event/{type}
//	service ──► graylogic/system/status (retained, LWT)
//
// TLS should be enabled outside local development (mqtt.broker.tls).
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllOccupancySensors(), 1, handler)
package mqtt
