// Package api implements the HTTP REST API and WebSocket server for the
// occupancy engine.
//
// This package provides:
//   - REST endpoints for facility state, rooms, appliances and settings
//   - Emergency shutdown and the automation history log
//   - A WebSocket hub whose clients are engine observers
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Push Model
//
// Every WebSocket client subscribes to the engine on connect, receives the
// current snapshot straight away and then one full snapshot per change:
//
//	{"type":"event","event_type":"state","payload":{...snapshot...}}
//
// Clients may also subscribe to the "automation" channel to receive
// individual automation events. Slow clients lose messages rather than
// slowing the engine down.
//
// # Graceful Degradation
//
// History and MQTT are optional. Without a history store the history
// endpoint answers 503; without MQTT the metrics report it disconnected.
package api
