// Package history keeps an append-only log of automation events in SQLite.
//
// The engine hands events to a Recorder, which queues them and writes them
// from a single goroutine so the engine never waits on disk. The log is for
// operators ("why did the lab switch off at 18:15?") and is never used to
// rebuild engine state.
//
// Usage:
//
//	store := history.NewSQLiteStore(db.DB)
//	rec := history.NewRecorder(store, history.RecorderOptions{Logger: log})
//	go rec.Run(ctx)
//
//	engine, _ := automation.NewEngine(automation.Options{Events: rec, ...})
package history
