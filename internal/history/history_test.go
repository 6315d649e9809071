package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-occupancy/migrations"
)

var base = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// setupStore opens an in-memory database with the real migrations applied.
func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteStore(db.DB)
}

func event(id string, typ automation.EventType, at time.Time, roomID int) automation.Event {
	return automation.Event{
		ID:     id,
		Type:   typ,
		At:     at,
		Source: automation.SourceManual,
		RoomID: &roomID,
		Detail: map[string]any{"switched_off": 3},
	}
}

func TestSQLiteStore_InsertAndList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	inserts := []automation.Event{
		event("a", automation.EventOccupancyChanged, base, 1),
		event("b", automation.EventAutoOffFired, base.Add(time.Minute), 1),
		event("c", automation.EventAutoOffFired, base.Add(2*time.Minute), 2),
		{ID: "d", Type: automation.EventEmergencyShutdown, At: base.Add(3 * time.Minute), Source: automation.SourceManual},
	}
	for _, ev := range inserts {
		if err := store.Insert(ctx, ev); err != nil {
			t.Fatalf("Insert(%s) error = %v", ev.ID, err)
		}
	}
	// Duplicate IDs are ignored.
	if err := store.Insert(ctx, inserts[0]); err != nil {
		t.Fatalf("duplicate Insert() error = %v", err)
	}

	room1 := 1
	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string
	}{
		{name: "all newest first", filter: Filter{}, wantIDs: []string{"d", "c", "b", "a"}},
		{name: "by room", filter: Filter{RoomID: &room1}, wantIDs: []string{"b", "a"}},
		{name: "by type", filter: Filter{Type: automation.EventAutoOffFired}, wantIDs: []string{"c", "b"}},
		{name: "since", filter: Filter{Since: base.Add(2 * time.Minute)}, wantIDs: []string{"d", "c"}},
		{name: "limit", filter: Filter{Limit: 1}, wantIDs: []string{"d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("List() returned %d events, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("List()[%d].ID = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	got, _ := store.List(ctx, Filter{Limit: 4})
	last := got[len(got)-1]
	if !last.At.Equal(base) || last.RoomID == nil || *last.RoomID != 1 {
		t.Errorf("round-tripped event = %+v", last)
	}
	if last.Detail["switched_off"] != float64(3) {
		t.Errorf("detail = %v", last.Detail)
	}
	if got[0].RoomID != nil || got[0].Detail != nil {
		t.Errorf("event without room/detail = %+v", got[0])
	}
}

func TestSQLiteStore_Prune(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	store.Insert(ctx, event("old", automation.EventAutoOffFired, base.Add(-48*time.Hour), 1))
	store.Insert(ctx, event("new", automation.EventAutoOffFired, base, 1))

	n, err := store.Prune(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() deleted %d, want 1", n)
	}

	got, _ := store.List(ctx, Filter{})
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("remaining events = %+v", got)
	}
}

func TestSQLiteStore_InsertRequiresID(t *testing.T) {
	store := setupStore(t)
	if err := store.Insert(context.Background(), automation.Event{}); err == nil {
		t.Error("Insert() without id expected error")
	}
}

// memStore is a Store for recorder tests.
type memStore struct {
	mu      sync.Mutex
	events  []automation.Event
	pruned  []time.Time
	written chan struct{}
}

func newMemStore() *memStore {
	return &memStore{written: make(chan struct{}, 64)}
}

func (m *memStore) Insert(_ context.Context, ev automation.Event) error {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	m.written <- struct{}{}
	return nil
}

func (m *memStore) List(context.Context, Filter) ([]automation.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]automation.Event(nil), m.events...), nil
}

func (m *memStore) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = append(m.pruned, olderThan)
	return 0, nil
}

func TestRecorder_WritesAndDrains(t *testing.T) {
	store := newMemStore()
	clock := clockwork.NewFakeClockAt(base)
	rec := NewRecorder(store, RecorderOptions{Clock: clock, Retention: 24 * time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go rec.Run(ctx)

	rec.Record(event("1", automation.EventOccupancyChanged, base, 1))
	select {
	case <-store.written:
	case <-time.After(2 * time.Second):
		t.Fatal("event not written")
	}

	cancel()
	<-rec.Done()

	if rec.Written() != 1 {
		t.Errorf("Written() = %d, want 1", rec.Written())
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.pruned) == 0 || !store.pruned[0].Equal(base.Add(-24*time.Hour)) {
		t.Errorf("initial prune cutoff = %v, want %v", store.pruned, base.Add(-24*time.Hour))
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	rec := NewRecorder(newMemStore(), RecorderOptions{BufferSize: 2})

	// Run is not started, so the queue fills.
	for i := 0; i < 5; i++ {
		rec.Record(automation.Event{ID: "x"})
	}
	if rec.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", rec.Dropped())
	}
}

func TestRecorder_WiredToEngine(t *testing.T) {
	sqlStore := setupStore(t)
	rec := NewRecorder(sqlStore, RecorderOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	engine, err := automation.NewEngine(automation.Options{
		Rooms: facility.DefaultCatalog(),
		Settings: facility.Settings{
			InactivityMinutes: 15,
			AutoShutdownTime:  facility.ClockTime{Hour: 22},
			Sensitivity:       facility.SensitivityMedium,
			WeekendMode:       facility.WeekendModeDisabled,
		},
		Events: rec,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	defer engine.Close()

	engine.EmergencyShutdown(automation.SourceManual)

	deadline := time.Now().Add(2 * time.Second)
	for rec.Written() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("emergency shutdown event not written")
		}
		time.Sleep(10 * time.Millisecond)
	}

	got, err := sqlStore.List(context.Background(), Filter{Type: automation.EventEmergencyShutdown})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("emergency shutdown events = %d, want 1", len(got))
	}
}
