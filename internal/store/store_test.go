package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if st.Path() != path {
		t.Errorf("Path: got %q, want %q", st.Path(), path)
	}
	if st.Writer() == nil {
		t.Error("Writer is nil")
	}
	if st.Reader() == nil {
		t.Error("Reader is nil")
	}

	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close must be idempotent.
	if err := st.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open with nested dir: %v", err)
	}
	st.Close()
}

func TestPing(t *testing.T) {
	st := openTestStore(t)
	if err := st.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	st := openTestStore(t)
	if err := st.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	v, err := st.currentVersion()
	if err != nil {
		t.Fatalf("currentVersion: %v", err)
	}
	if v != migrations[len(migrations)-1].Version {
		t.Errorf("currentVersion: got %d, want %d", v, migrations[len(migrations)-1].Version)
	}
}
