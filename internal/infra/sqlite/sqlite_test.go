package sqlite

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_CreatesParentDirectories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deeper", "walkweek.sqlite")

	db, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	defer sqlDB.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("parent directory missing: %v", err)
	}
}

func TestNew_AppliesPragmas(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "walkweek.sqlite")

	db, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	var fk int
	if err := db.Raw("PRAGMA foreign_keys").Scan(&fk).Error; err != nil {
		t.Fatalf("foreign_keys query: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var busy int
	if err := db.Raw("PRAGMA busy_timeout").Scan(&busy).Error; err != nil {
		t.Fatalf("busy_timeout query: %v", err)
	}
	if busy < busyTimeoutMillis {
		t.Fatalf("busy_timeout = %d, want >= %d", busy, busyTimeoutMillis)
	}

	mode, err := journalMode(db)
	if err != nil {
		t.Fatalf("journal_mode query: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
}

func TestConfigure_ReturnsNoWarningsOnFileDatabase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "walkweek.sqlite")

	db, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if warnings := configure(db); len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}
