package store

import (
	"os"
	"path/filepath"
	"testing"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"inventory", "reservations", "rate_limits"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, expected %d", version, currentSchemaVersion)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestLazy_OpensOnce(t *testing.T) {
	l := &Lazy{Path: filepath.Join(t.TempDir(), "test.db")}
	defer l.Close()

	s1, err := l.Get()
	if err != nil {
		t.Fatalf("first Get() failed: %v", err)
	}
	s2, err := l.Get()
	if err != nil {
		t.Fatalf("second Get() failed: %v", err)
	}
	if s1 != s2 {
		t.Error("Get() returned a different store on second call")
	}
}

func TestLazy_RetriesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	l := &Lazy{Path: filepath.Join(dir, "missing", "test.db")}

	if _, err := l.Get(); err == nil {
		t.Fatal("expected error for unwritable path, got nil")
	}

	// Failure must not be cached: fixing the path precondition makes the
	// next Get succeed.
	l.Path = filepath.Join(dir, "test.db")
	s, err := l.Get()
	if err != nil {
		t.Fatalf("Get() after fixing path failed: %v", err)
	}
	defer l.Close()
	if s == nil {
		t.Error("Get() returned nil store")
	}
}
