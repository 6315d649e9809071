// Package sensor connects occupancy inputs and outputs to the engine.
//
// Inputs call Engine.SetOccupancy with automation.SourceSensor:
//
//   - Simulator flips room occupancy at random on a ticker, standing in for
//     real hardware during development and demos.
//   - MQTTSource subscribes to graylogic/sensor/occupancy/+ and applies
//     {"occupied": bool} payloads from field gateways.
//
// StatePublisher goes the other way: it is an engine observer and event
// sink that republishes the latest snapshot (retained) and every automation
// event to MQTT from its own goroutine, so broker latency never reaches the
// engine's publish path.
package sensor
