package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "sub", "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesDirectoryAndFile(t *testing.T) {
	db := openTestDB(t)

	if _, err := os.Stat(filepath.Dir(db.Path())); err != nil {
		t.Fatalf("database directory not created: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("reading journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer db.Close()

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open() with empty path expected error")
	}
}

func TestClose_Nil(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

var testMigrations = fstest.MapFS{
	"20261019_090000_widgets.up.sql": &fstest.MapFile{Data: []byte(
		`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL) STRICT;`)},
	"20261019_100000_widget_index.up.sql": &fstest.MapFile{Data: []byte(
		`CREATE INDEX idx_widgets_name ON widgets(name);`)},
	"20261019_090000_widgets.down.sql": &fstest.MapFile{Data: []byte(`DROP TABLE widgets;`)},
	"README.md":                        &fstest.MapFile{Data: []byte("ignored")},
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	n, err := db.Migrate(ctx, testMigrations)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Migrate() applied %d, want 2", n)
	}

	var name string
	if err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_widgets_name'",
	).Scan(&name); err != nil {
		t.Fatalf("index not created: %v", err)
	}

	// Second run is a no-op.
	n, err = db.Migrate(ctx, testMigrations)
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second Migrate() applied %d, want 0", n)
	}

	pending, err := db.Pending(ctx, testMigrations)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Pending() = %d, want 0", len(pending))
	}
}

func TestMigrate_FailureStopsAndResumes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	broken := fstest.MapFS{
		"20261019_090000_ok.up.sql":     &fstest.MapFile{Data: []byte(`CREATE TABLE ok (id INTEGER);`)},
		"20261019_100000_broken.up.sql": &fstest.MapFile{Data: []byte(`CREATE TABLE nope (`)},
	}

	n, err := db.Migrate(ctx, broken)
	if err == nil {
		t.Fatal("Migrate() expected error for broken SQL")
	}
	if n != 1 {
		t.Errorf("Migrate() applied %d before failing, want 1", n)
	}

	broken["20261019_100000_broken.up.sql"] = &fstest.MapFile{Data: []byte(`CREATE TABLE fixed (id INTEGER);`)}
	n, err = db.Migrate(ctx, broken)
	if err != nil {
		t.Fatalf("Migrate() after fix error = %v", err)
	}
	if n != 1 {
		t.Errorf("Migrate() after fix applied %d, want 1", n)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		file        string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"20261019_090000_automation_events.up.sql", "20261019_090000", "automation_events", true},
		{"20261019_090000_x.down.sql", "", "", false},
		{"20261019.up.sql", "", "", false},
		{"notes.txt", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			v, n, ok := parseMigrationFilename(tt.file)
			if v != tt.wantVersion || n != tt.wantName || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.file, v, n, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
