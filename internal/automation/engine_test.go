package automation

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
)

// ─── Test Helpers ───────────────────────────────────────────────────────────

const (
	roomConference = 1
	roomLab        = 2
	roomOffice     = 3
)

var testStart = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// recordingObserver keeps every snapshot it receives.
type recordingObserver struct {
	mu    sync.Mutex
	snaps []facility.Snapshot
}

func (o *recordingObserver) Notify(s facility.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snaps = append(o.snaps, s)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.snaps)
}

func (o *recordingObserver) last() facility.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snaps[len(o.snaps)-1]
}

func (o *recordingObserver) versions() []uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]uint64, len(o.snaps))
	for i, s := range o.snaps {
		out[i] = s.Version
	}
	return out
}

// eventRecorder forwards events to a buffered channel.
type eventRecorder struct {
	ch chan Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan Event, 256)}
}

func (r *eventRecorder) Record(ev Event) {
	select {
	case r.ch <- ev:
	default:
	}
}

// waitFor drains events until one of the given type arrives.
func (r *eventRecorder) waitFor(t *testing.T, typ EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", typ)
			return Event{}
		}
	}
}

func defaultSettings() facility.Settings {
	return facility.Settings{
		InactivityMinutes: 15,
		AutoShutdownTime:  facility.ClockTime{Hour: 22, Minute: 0},
		Sensitivity:       facility.SensitivityMedium,
		WeekendMode:       facility.WeekendModeDisabled,
	}
}

type testEngine struct {
	engine   *Engine
	clock    clockwork.FakeClock
	events   *eventRecorder
	observer *recordingObserver
}

func setupEngine(t *testing.T, mutate func(*Options)) *testEngine {
	t.Helper()

	clock := clockwork.NewFakeClockAt(testStart)
	events := newEventRecorder()
	opts := Options{
		Rooms:    facility.DefaultCatalog(),
		Settings: defaultSettings(),
		Clock:    clock,
		Location: time.UTC,
		Events:   events,
	}
	if mutate != nil {
		mutate(&opts)
	}

	engine, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	obs := &recordingObserver{}
	engine.Subscribe(obs)

	return &testEngine{engine: engine, clock: clock, events: events, observer: obs}
}

func activeIn(t *testing.T, snap facility.Snapshot, roomID int) int {
	t.Helper()
	room, ok := snap.Room(roomID)
	if !ok {
		t.Fatalf("room %d missing from snapshot", roomID)
	}
	return room.ActiveCount()
}

// ─── Construction ───────────────────────────────────────────────────────────

func TestNewEngine_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{name: "empty catalog", mutate: func(o *Options) { o.Rooms = nil }},
		{name: "zero inactivity", mutate: func(o *Options) { o.Settings.InactivityMinutes = 0 }},
		{name: "unknown policy", mutate: func(o *Options) { o.Policy = "sometimes" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{Rooms: facility.DefaultCatalog(), Settings: defaultSettings()}
			tt.mutate(&opts)
			if _, err := NewEngine(opts); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("NewEngine() error = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestNewEngine_CopiesCatalog(t *testing.T) {
	rooms := facility.DefaultCatalog()
	engine, err := NewEngine(Options{Rooms: rooms, Settings: defaultSettings()})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	defer engine.Close()

	rooms[0].Appliances[0].State = facility.StateOn

	snap := engine.Snapshot()
	if got := activeIn(t, snap, roomConference); got != 0 {
		t.Errorf("engine state followed caller's slice: active = %d, want 0", got)
	}
	if !snap.SystemStatus.Online {
		t.Error("new engine should be online")
	}
}

// ─── Subscribe / Fan-out ────────────────────────────────────────────────────

func TestSubscribe_ReceivesInitialSnapshot(t *testing.T) {
	te := setupEngine(t, nil)

	if got := te.observer.count(); got != 1 {
		t.Fatalf("observer received %d snapshots on subscribe, want 1", got)
	}
	snap := te.observer.last()
	if snap.Stats.TotalRooms != 4 || snap.Stats.TotalAppliances != 12 {
		t.Errorf("initial stats = %+v", snap.Stats)
	}

	// A second subscriber gets its own initial push; the first gets nothing.
	second := &recordingObserver{}
	te.engine.Subscribe(second)
	if second.count() != 1 {
		t.Errorf("second observer received %d snapshots, want 1", second.count())
	}
	if te.observer.count() != 1 {
		t.Errorf("first observer received %d snapshots, want 1", te.observer.count())
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	te := setupEngine(t, nil)

	other := &recordingObserver{}
	id := te.engine.Subscribe(other)
	if !te.engine.Unsubscribe(id) {
		t.Fatal("Unsubscribe() = false for a known id")
	}
	if te.engine.Unsubscribe(id) {
		t.Error("Unsubscribe() = true for an already removed id")
	}

	te.engine.EmergencyShutdown(SourceManual)

	if other.count() != 1 {
		t.Errorf("unsubscribed observer received %d snapshots, want 1", other.count())
	}
	if te.observer.count() != 2 {
		t.Errorf("subscribed observer received %d snapshots, want 2", te.observer.count())
	}
}

func TestBroadcast_VersionsInOrder(t *testing.T) {
	te := setupEngine(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				state := facility.StateOn
				if j%2 == 0 {
					state = facility.StateOff
				}
				if _, err := te.engine.ControlAppliance(1+i%12, state, SourceManual); err != nil {
					t.Errorf("ControlAppliance() error = %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	versions := te.observer.versions()
	if len(versions) != 1+8*25 {
		t.Fatalf("received %d snapshots, want %d", len(versions), 1+8*25)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] != versions[i-1]+1 {
			t.Fatalf("version %d followed by %d", versions[i-1], versions[i])
		}
	}
}

func TestBroadcast_ObserverPanicContained(t *testing.T) {
	te := setupEngine(t, nil)

	te.engine.Subscribe(ObserverFunc(func(facility.Snapshot) { panic("boom") }))
	te.engine.EmergencyShutdown(SourceManual)

	if te.observer.count() != 2 {
		t.Errorf("healthy observer received %d snapshots, want 2", te.observer.count())
	}
}

// ─── SetOccupancy ───────────────────────────────────────────────────────────

func TestSetOccupancy_LastActivity(t *testing.T) {
	te := setupEngine(t, nil)

	room, err := te.engine.SetOccupancy(roomOffice, true, SourceManual)
	if err != nil {
		t.Fatalf("SetOccupancy() error = %v", err)
	}
	if !room.Occupied || room.LastActivityAt == nil || !room.LastActivityAt.Equal(testStart) {
		t.Errorf("occupied room = %+v, want lastActivityAt %v", room, testStart)
	}

	room, err = te.engine.SetOccupancy(roomOffice, false, SourceManual)
	if err != nil {
		t.Fatalf("SetOccupancy() error = %v", err)
	}
	if room.Occupied || room.LastActivityAt != nil {
		t.Errorf("vacant room = %+v, want nil lastActivityAt", room)
	}
}

func TestSetOccupancy_NotFound(t *testing.T) {
	te := setupEngine(t, nil)

	_, err := te.engine.SetOccupancy(99, true, SourceManual)
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("SetOccupancy(99) error = %v, want ErrRoomNotFound", err)
	}
	if te.observer.count() != 1 {
		t.Errorf("unknown room produced a broadcast")
	}
}

func TestSetOccupancy_IdempotentWriteBroadcasts(t *testing.T) {
	te := setupEngine(t, nil)

	te.engine.SetOccupancy(roomOffice, true, SourceManual)
	te.engine.SetOccupancy(roomOffice, true, SourceManual)

	if got := te.observer.count(); got != 3 {
		t.Errorf("observer received %d snapshots, want 3", got)
	}
}

func TestSetOccupancy_SensorTurnsOnLightsOnly(t *testing.T) {
	te := setupEngine(t, nil)

	room, err := te.engine.SetOccupancy(roomOffice, true, SourceSensor)
	if err != nil {
		t.Fatalf("SetOccupancy() error = %v", err)
	}
	for _, a := range room.Appliances {
		wantOn := a.Category == facility.CategoryLight
		if a.State.IsOn() != wantOn {
			t.Errorf("appliance %d (%s) state = %s", a.ID, a.Category, a.State)
		}
	}

	manual, _ := te.engine.SetOccupancy(roomConference, true, SourceManual)
	if manual.ActiveCount() != 0 {
		t.Errorf("manual occupancy switched %d appliances on", manual.ActiveCount())
	}
}

// Vacancy followed by a full inactivity window switches everything off.
func TestSetOccupancy_VacancyTurnsOffAfterWindow(t *testing.T) {
	te := setupEngine(t, nil)

	te.engine.SetOccupancy(roomLab, false, SourceManual)
	if got := te.engine.PendingTurnOffs(); got != 1 {
		t.Fatalf("PendingTurnOffs() = %d, want 1", got)
	}

	te.clock.Advance(14 * time.Minute)
	if got := activeIn(t, te.engine.Snapshot(), roomLab); got != 2 {
		t.Fatalf("lab active before window = %d, want 2", got)
	}

	te.clock.Advance(time.Minute)
	ev := te.events.waitFor(t, EventAutoOffFired)

	if ev.RoomID == nil || *ev.RoomID != roomLab {
		t.Errorf("auto_off_fired room = %v, want %d", ev.RoomID, roomLab)
	}
	if got := activeIn(t, te.engine.Snapshot(), roomLab); got != 0 {
		t.Errorf("lab active after window = %d, want 0", got)
	}
	if got := activeIn(t, te.observer.last(), roomLab); got != 0 {
		t.Errorf("observer's last snapshot shows %d active in lab", got)
	}
	if got := te.engine.PendingTurnOffs(); got != 0 {
		t.Errorf("PendingTurnOffs() after fire = %d, want 0", got)
	}
}

// Re-occupying before the timer fires makes the turn-off a no-op.
func TestSetOccupancy_StaleTurnOffIsNoOp(t *testing.T) {
	te := setupEngine(t, nil)

	te.engine.SetOccupancy(roomLab, false, SourceManual)
	te.clock.Advance(5 * time.Minute)
	te.engine.SetOccupancy(roomLab, true, SourceManual)
	before := te.observer.count()

	te.clock.Advance(10 * time.Minute)
	te.events.waitFor(t, EventAutoOffSkipped)

	if got := activeIn(t, te.engine.Snapshot(), roomLab); got != 2 {
		t.Errorf("lab active after stale timer = %d, want 2", got)
	}
	if te.observer.count() != before {
		t.Errorf("stale timer produced a broadcast")
	}
}

func TestSetOccupancy_IndependentTimersAccumulate(t *testing.T) {
	te := setupEngine(t, nil)

	te.engine.SetOccupancy(roomLab, false, SourceManual)
	te.engine.SetOccupancy(roomLab, true, SourceManual)
	te.engine.SetOccupancy(roomLab, false, SourceManual)

	if got := te.engine.PendingTurnOffs(); got != 2 {
		t.Fatalf("PendingTurnOffs() = %d, want 2", got)
	}

	te.clock.Advance(15 * time.Minute)
	te.events.waitFor(t, EventAutoOffFired)
	te.events.waitFor(t, EventAutoOffFired)

	if got := te.engine.PendingTurnOffs(); got != 0 {
		t.Errorf("PendingTurnOffs() = %d, want 0", got)
	}
}

func TestSetOccupancy_SupersedePolicy(t *testing.T) {
	te := setupEngine(t, func(o *Options) { o.Policy = PolicySupersede })

	te.engine.SetOccupancy(roomLab, false, SourceManual)
	te.clock.Advance(10 * time.Minute)
	te.engine.SetOccupancy(roomLab, false, SourceManual)

	if got := te.engine.PendingTurnOffs(); got != 1 {
		t.Fatalf("PendingTurnOffs() = %d, want 1", got)
	}

	// 20 minutes after the first vacancy, 10 after the second.
	te.clock.Advance(10 * time.Minute)
	if got := te.engine.PendingTurnOffs(); got != 1 {
		t.Fatalf("superseded timer fired: PendingTurnOffs() = %d", got)
	}
	if got := activeIn(t, te.engine.Snapshot(), roomLab); got != 2 {
		t.Fatalf("lab switched off early: active = %d", got)
	}

	te.clock.Advance(5 * time.Minute)
	te.events.waitFor(t, EventAutoOffFired)
	if got := activeIn(t, te.engine.Snapshot(), roomLab); got != 0 {
		t.Errorf("lab active = %d, want 0", got)
	}
}

func TestSetOccupancy_WindowFixedAtScheduleTime(t *testing.T) {
	te := setupEngine(t, nil)

	te.engine.SetOccupancy(roomLab, false, SourceManual)

	longer := 60
	if _, err := te.engine.UpdateSettings(facility.SettingsPatch{InactivityMinutes: &longer}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	te.clock.Advance(15 * time.Minute)
	te.events.waitFor(t, EventAutoOffFired)
}

// ─── ControlAppliance ───────────────────────────────────────────────────────

func TestControlAppliance(t *testing.T) {
	te := setupEngine(t, nil)

	a, err := te.engine.ControlAppliance(7, facility.StateOn, SourceManual)
	if err != nil {
		t.Fatalf("ControlAppliance() error = %v", err)
	}
	if a.ID != 7 || a.State != facility.StateOn {
		t.Errorf("ControlAppliance() = %+v", a)
	}

	snap := te.observer.last()
	if got, _ := snap.Appliance(7); got.State != facility.StateOn {
		t.Errorf("snapshot appliance 7 state = %s, want on", got.State)
	}
	if room, _ := snap.Room(roomOffice); room.Occupied {
		t.Error("ControlAppliance changed occupancy")
	}
}

func TestControlAppliance_NotFoundNoBroadcast(t *testing.T) {
	te := setupEngine(t, nil)

	_, err := te.engine.ControlAppliance(999, facility.StateOn, SourceManual)
	if !errors.Is(err, ErrApplianceNotFound) {
		t.Fatalf("ControlAppliance(999) error = %v, want ErrApplianceNotFound", err)
	}
	if te.observer.count() != 1 {
		t.Errorf("unknown appliance produced a broadcast")
	}
}

func TestControlAppliance_InvalidState(t *testing.T) {
	te := setupEngine(t, nil)

	_, err := te.engine.ControlAppliance(1, "dim", SourceManual)
	if !errors.Is(err, ErrInvalidPowerState) {
		t.Fatalf("ControlAppliance(dim) error = %v, want ErrInvalidPowerState", err)
	}
	if te.observer.count() != 1 {
		t.Errorf("invalid state produced a broadcast")
	}
}

// Lab has three appliances with two on. Vacate it with a one minute
// window; an appliance can still be switched on during the window and
// everything is off once the minute passes.
func TestScenario_LabInactivity(t *testing.T) {
	te := setupEngine(t, func(o *Options) { o.Settings.InactivityMinutes = 1 })

	if got := activeIn(t, te.engine.Snapshot(), roomLab); got != 2 {
		t.Fatalf("lab starts with %d active, want 2", got)
	}

	te.engine.SetOccupancy(roomLab, false, SourceManual)
	te.clock.Advance(30 * time.Second)

	if _, err := te.engine.ControlAppliance(6, facility.StateOn, SourceManual); err != nil {
		t.Fatalf("ControlAppliance() error = %v", err)
	}
	if got := activeIn(t, te.engine.Snapshot(), roomLab); got != 3 {
		t.Fatalf("lab active mid-window = %d, want 3", got)
	}

	te.clock.Advance(30 * time.Second)
	te.events.waitFor(t, EventAutoOffFired)

	if got := activeIn(t, te.engine.Snapshot(), roomLab); got != 0 {
		t.Errorf("lab active after window = %d, want 0", got)
	}
}

// ─── EmergencyShutdown ──────────────────────────────────────────────────────

func TestEmergencyShutdown(t *testing.T) {
	te := setupEngine(t, nil)

	for id := 1; id <= 12; id++ {
		te.engine.ControlAppliance(id, facility.StateOn, SourceManual)
	}
	te.engine.SetOccupancy(roomConference, true, SourceSensor)

	te.engine.EmergencyShutdown(SourceManual)

	st := te.observer.last().Stats
	if st.ActiveAppliances != 0 {
		t.Errorf("ActiveAppliances = %d, want 0", st.ActiveAppliances)
	}
	if st.EnergySaved != st.TotalAppliances*facility.WattsPerIdleAppliance {
		t.Errorf("EnergySaved = %d, want %d", st.EnergySaved, st.TotalAppliances*facility.WattsPerIdleAppliance)
	}
	if st.OccupiedRooms != 1 {
		t.Errorf("EmergencyShutdown changed occupancy: OccupiedRooms = %d", st.OccupiedRooms)
	}

	ev := te.events.waitFor(t, EventEmergencyShutdown)
	if ev.Detail["switched_off"] != 12 {
		t.Errorf("switched_off = %v, want 12", ev.Detail["switched_off"])
	}
}

func TestStats_EnergySavedHoldsForEverySnapshot(t *testing.T) {
	te := setupEngine(t, nil)

	te.engine.ControlAppliance(1, facility.StateOn, SourceManual)
	te.engine.SetOccupancy(roomOffice, true, SourceSensor)
	te.engine.EmergencyShutdown(SourceManual)

	te.observer.mu.Lock()
	defer te.observer.mu.Unlock()
	for _, s := range te.observer.snaps {
		want := (s.Stats.TotalAppliances - s.Stats.ActiveAppliances) * facility.WattsPerIdleAppliance
		if s.Stats.EnergySaved != want {
			t.Errorf("version %d: EnergySaved = %d, want %d", s.Version, s.Stats.EnergySaved, want)
		}
	}
}

// ─── UpdateSettings ─────────────────────────────────────────────────────────

func TestUpdateSettings(t *testing.T) {
	te := setupEngine(t, nil)

	zero := 0
	low := facility.SensitivityLow
	got, err := te.engine.UpdateSettings(facility.SettingsPatch{InactivityMinutes: &zero, Sensitivity: &low})
	if err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	if got.InactivityMinutes != 15 {
		t.Errorf("zero inactivity overwrote setting: %d", got.InactivityMinutes)
	}
	if got.Sensitivity != facility.SensitivityLow {
		t.Errorf("Sensitivity = %s, want low", got.Sensitivity)
	}
	if te.observer.last().Settings != got {
		t.Errorf("broadcast settings = %+v, want %+v", te.observer.last().Settings, got)
	}
}

func TestUpdateSettings_Invalid(t *testing.T) {
	te := setupEngine(t, nil)

	bad := facility.Sensitivity("extreme")
	_, err := te.engine.UpdateSettings(facility.SettingsPatch{Sensitivity: &bad})
	if !errors.Is(err, facility.ErrInvalidSettings) {
		t.Fatalf("UpdateSettings() error = %v, want ErrInvalidSettings", err)
	}
	if te.engine.Settings().Sensitivity != facility.SensitivityMedium {
		t.Error("invalid update changed settings")
	}
	if te.observer.count() != 1 {
		t.Error("invalid update produced a broadcast")
	}
}

// ─── Daily shutdown ─────────────────────────────────────────────────────────

func TestCheckDailyShutdown_MidnightOncePerMinute(t *testing.T) {
	te := setupEngine(t, nil)

	midnight := facility.ClockTime{Hour: 0, Minute: 0}
	if _, err := te.engine.UpdateSettings(facility.SettingsPatch{AutoShutdownTime: &midnight}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	day := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "minute before", at: day.Add(-time.Minute), want: false},
		{name: "start of minute", at: day, want: true},
		{name: "same minute again", at: day.Add(30 * time.Second), want: false},
		{name: "next minute", at: day.Add(time.Minute), want: false},
		{name: "next day", at: day.Add(24 * time.Hour), want: true},
	}

	for _, tt := range tests {
		// Switch something on so a firing is observable.
		te.engine.ControlAppliance(1, facility.StateOn, SourceManual)

		if got := te.engine.CheckDailyShutdown(tt.at); got != tt.want {
			t.Errorf("%s: CheckDailyShutdown() = %v, want %v", tt.name, got, tt.want)
		}
		if tt.want && te.observer.last().Stats.ActiveAppliances != 0 {
			t.Errorf("%s: appliances still on after shutdown", tt.name)
		}
	}
}

func TestCheckDailyShutdown_SiteTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	te := setupEngine(t, func(o *Options) { o.Location = loc })

	// 22:00 local is 20:00 UTC.
	if te.engine.CheckDailyShutdown(time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC)) {
		t.Error("fired at 22:00 UTC, want 22:00 site time")
	}
	if !te.engine.CheckDailyShutdown(time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)) {
		t.Error("did not fire at 22:00 site time")
	}
}

// The skipped event waits for any publication in flight, like every other
// event.
func TestFireAutoOff_SkipWaitsForPublication(t *testing.T) {
	te := setupEngine(t, nil)

	te.engine.SetOccupancy(roomLab, false, SourceManual)
	te.engine.SetOccupancy(roomLab, true, SourceManual)
	drainEvents(te.events)

	te.engine.fanout.publishMu.Lock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		te.engine.fireAutoOff(roomLab)
	}()

	select {
	case ev := <-te.events.ch:
		t.Fatalf("event %s recorded while a publication was in flight", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}

	te.engine.fanout.publishMu.Unlock()
	<-done
	te.events.waitFor(t, EventAutoOffSkipped)

	if v := te.engine.Snapshot().Version; v != te.observer.last().Version {
		t.Errorf("skip moved the version: engine %d, observer %d", v, te.observer.last().Version)
	}
}

func drainEvents(r *eventRecorder) {
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

// ─── Close ──────────────────────────────────────────────────────────────────

func TestClose(t *testing.T) {
	te := setupEngine(t, nil)

	te.engine.SetOccupancy(roomLab, false, SourceManual)
	te.engine.SetOccupancy(roomOffice, false, SourceManual)

	if err := te.engine.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := te.engine.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if got := te.engine.PendingTurnOffs(); got != 0 {
		t.Errorf("PendingTurnOffs() after Close = %d, want 0", got)
	}
	last := te.observer.last()
	if last.SystemStatus.Online {
		t.Error("final snapshot still online")
	}
	ev := te.events.waitFor(t, EventEngineStopped)
	if ev.Source != SourceSystem {
		t.Errorf("engine_stopped source = %s, want %s", ev.Source, SourceSystem)
	}
	if ev.Detail["cancelled_turn_offs"] != 2 {
		t.Errorf("engine_stopped detail = %v, want 2 cancelled", ev.Detail)
	}

	te.clock.Advance(time.Hour)
	if got := activeIn(t, te.engine.Snapshot(), roomLab); got != 2 {
		t.Errorf("turn-off fired after Close: lab active = %d", got)
	}
}

func TestMultiSink(t *testing.T) {
	a, b := newEventRecorder(), newEventRecorder()
	sink := MultiSink{a, nil, b}

	sink.Record(Event{ID: "1", Type: EventDailyShutdown})

	for i, r := range []*eventRecorder{a, b} {
		select {
		case ev := <-r.ch:
			if ev.ID != "1" {
				t.Errorf("sink %d got %+v", i, ev)
			}
		default:
			t.Errorf("sink %d received nothing", i)
		}
	}
}
