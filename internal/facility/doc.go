// Package facility defines the room and appliance state model for Gray Logic
// Occupancy.
//
// The model is deliberately passive: it holds values and the small amount of
// logic that is a pure function of those values (stats, validation, clock
// time parsing). All mutation and synchronisation lives in the automation
// package, which owns the only live copy of the catalog.
//
// # Key Types
//
//   - Appliance: a switchable load owned by exactly one room
//   - Room: an occupancy zone with an ordered list of appliances
//   - Settings: process-wide automation tunables
//   - SettingsPatch: a partial settings update
//   - Stats: aggregate counters, always recomputed and never stored
//   - Snapshot: the full state pushed to observers
//
// Values returned from the automation engine are deep copies; callers may
// modify them freely.
package facility
