package db

import (
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
)

func mapMigrator(files map[string]string) *Migrator {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return NewMigrator(nil, fsys, zerolog.Nop())
}

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	m := mapMigrator(map[string]string{
		"010_tables.sql": "SELECT 10;",
		"002_second.sql": "SELECT 2;",
		"001_first.sql":  "SELECT 1;",
	})

	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	want := []int{1, 2, 10}
	if len(migrations) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(migrations))
	}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("migration[%d]: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
	if migrations[0].SQL != "SELECT 1;" {
		t.Errorf("unexpected SQL: %q", migrations[0].SQL)
	}
}

func TestLoadMigrations_SkipsUnversionedFiles(t *testing.T) {
	m := mapMigrator(map[string]string{
		"001_valid.sql":   "SELECT 1;",
		"readme.sql":      "-- no prefix",
		"notes.txt":       "not sql",
		"abc_invalid.sql": "-- non-numeric",
	})

	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 1 || migrations[0].Name != "001_valid.sql" {
		t.Fatalf("unexpected migrations: %+v", migrations)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	m := mapMigrator(map[string]string{
		"001_a.sql": "SELECT 1;",
		"1_b.sql":   "SELECT 1;",
	})
	if _, err := m.LoadMigrations(); err == nil {
		t.Fatal("expected error for duplicate version")
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	m := NewMigrator(nil, os.DirFS("/nonexistent/migrations/dir"), zerolog.Nop())
	if _, err := m.LoadMigrations(); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoadMigrations_ShippedMigrations(t *testing.T) {
	m := NewMigrator(nil, os.DirFS("../../../migrations"), zerolog.Nop())
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) == 0 || migrations[0].Version != 1 {
		t.Fatalf("expected shipped migration 001, got %+v", migrations)
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}}
	applied := map[int]time.Time{1: time.Now()}

	got := pending(migrations, applied, 3)
	if len(got) != 2 || got[0].Version != 2 || got[1].Version != 3 {
		t.Errorf("unexpected pending set: %+v", got)
	}

	if all := pending(migrations, applied, 0); len(all) != 3 {
		t.Errorf("expected 3 pending without a target, got %d", len(all))
	}
}

func TestBuildStatus(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	statuses := buildStatus(
		[]Migration{{Version: 1, Name: "001_clinic.sql"}, {Version: 2, Name: "002_more.sql"}},
		map[int]time.Time{1: at},
	)

	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected 001 applied at %v, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected 002 pending, got %+v", statuses[1])
	}
}
