// Package panel serves the facility dashboard: a single page that lists
// rooms and appliances, follows live state over the WebSocket feed and
// calls the REST API for occupancy toggles, appliance switches, settings
// and emergency shutdown.
//
// The assets are embedded with go:embed. A directory on disk can be served
// instead while working on the page, so no rebuild is needed per edit.
// Unknown paths fall back to index.html.
package panel
