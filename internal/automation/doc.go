// Package automation implements occupancy-driven appliance control for
// Gray Logic Occupancy.
//
// The Engine owns every room, appliance, setting and status field. Callers
// mutate state only through its operations, and each mutation ends with a
// full snapshot pushed to all observers.
//
// Architecture:
//
//	sensor / API ──▶ Engine.SetOccupancy ──┬──▶ Scheduler (deferred turn-off)
//	                                       │          │ fires later
//	                                       │          ▼
//	                                       │    Engine.fireAutoOff
//	                                       │    (re-checks occupancy)
//	                                       ▼
//	ShutdownChecker ──▶ CheckDailyShutdown ──▶ Broadcaster ──▶ Observers
//	                                                  └────▶ EventSink
//
// # Deferred turn-offs
//
// When a room becomes vacant the engine schedules "switch everything off"
// after the inactivity window in force at that moment. The timer does not
// carry a decision with it: at fire time it takes the engine lock and reads
// the room's occupancy again. If the room is occupied the turn-off is a
// no-op. With PolicyIndependent several timers may be pending for one room
// and each makes its own check; PolicySupersede cancels the room's pending
// timers on every occupancy write instead.
//
// # Thread Safety
//
// Engine, Scheduler and Broadcaster are safe for concurrent use. Observer
// and EventSink implementations must not block and must not call back into
// the Engine from Notify or Record.
//
// # Usage
//
//	engine, err := automation.NewEngine(automation.Options{
//	    Rooms:    facility.DefaultCatalog(),
//	    Settings: settings,
//	    Logger:   log,
//	})
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	engine.Subscribe(hubObserver)
//	go automation.NewShutdownChecker(engine, nil, time.Minute, log).Run(ctx)
//
//	engine.SetOccupancy(2, false, automation.SourceManual)
package automation
