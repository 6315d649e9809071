package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// timeLayout is fixed width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000Z"
)

// Filter narrows a List query. Zero fields are ignored.
type Filter struct {
	RoomID *int
	Type   automation.EventType
	Since  time.Time
	Limit  int
}

// Store persists automation events.
type Store interface {
	Insert(ctx context.Context, ev automation.Event) error
	List(ctx context.Context, f Filter) ([]automation.Event, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// SQLiteStore implements Store on the automation_events table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert writes one event. Re-inserting an existing ID is ignored.
func (s *SQLiteStore) Insert(ctx context.Context, ev automation.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("event id is required")
	}

	detail := []byte("{}")
	if len(ev.Detail) > 0 {
		var err error
		if detail, err = json.Marshal(ev.Detail); err != nil {
			return fmt.Errorf("marshalling detail: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO automation_events
			(id, occurred_at, type, source, room_id, appliance_id, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.At.UTC().Format(timeLayout),
		string(ev.Type),
		string(ev.Source),
		nullableInt(ev.RoomID),
		nullableInt(ev.ApplianceID),
		string(detail),
	)
	if err != nil {
		return fmt.Errorf("inserting automation event: %w", err)
	}
	return nil
}

// List returns events newest first. Limit defaults to 50 and is capped at 200.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]automation.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var (
		where []string
		args  []any
	)
	if f.RoomID != nil {
		where = append(where, "room_id = ?")
		args = append(args, *f.RoomID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if !f.Since.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}

	query := `SELECT id, occurred_at, type, source, room_id, appliance_id, detail FROM automation_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying automation events: %w", err)
	}
	defer rows.Close()

	events := make([]automation.Event, 0, limit)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating automation events: %w", err)
	}
	return events, nil
}

// Prune deletes events that occurred before olderThan.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM automation_events WHERE occurred_at < ?",
		olderThan.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting automation events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func scanEvent(rows *sql.Rows) (automation.Event, error) {
	var (
		ev          automation.Event
		occurredAt  string
		typ, source string
		roomID      sql.NullInt64
		applianceID sql.NullInt64
		detail      string
	)
	if err := rows.Scan(&ev.ID, &occurredAt, &typ, &source, &roomID, &applianceID, &detail); err != nil {
		return ev, fmt.Errorf("scanning automation event: %w", err)
	}

	at, err := time.Parse(timeLayout, occurredAt)
	if err != nil {
		return ev, fmt.Errorf("parsing occurred_at: %w", err)
	}
	ev.At = at
	ev.Type = automation.EventType(typ)
	ev.Source = automation.Source(source)
	if roomID.Valid {
		v := int(roomID.Int64)
		ev.RoomID = &v
	}
	if applianceID.Valid {
		v := int(applianceID.Int64)
		ev.ApplianceID = &v
	}
	if detail != "" && detail != "{}" {
		if err := json.Unmarshal([]byte(detail), &ev.Detail); err != nil {
			return ev, fmt.Errorf("unmarshalling detail: %w", err)
		}
	}
	return ev, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
