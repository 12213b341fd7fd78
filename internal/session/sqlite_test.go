package session

import (
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	if err := store.Save("Alice", testRecord()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, ok := store.Load("Alice")
	if !ok {
		t.Fatal("Load: record not found after save")
	}
	assertRoundTrip(t, loaded)
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	store := newTestSQLiteStore(t)
	if _, ok := store.Load("nobody"); ok {
		t.Fatal("Load should report no record for unknown key")
	}
}

func TestSQLiteStore_SaveOverwrites(t *testing.T) {
	store := newTestSQLiteStore(t)
	if err := store.Save("alice", testRecord()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec := testRecord()
	rec.History = rec.History[:1]
	rec.Tasks = nil
	if err := store.Save("alice", rec); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	loaded, ok := store.Load("alice")
	if !ok {
		t.Fatal("Load after overwrite")
	}
	if len(loaded.History) != 1 {
		t.Fatalf("history len=%d, want 1", len(loaded.History))
	}
	if len(loaded.Tasks) != 0 {
		t.Fatalf("tasks len=%d, want 0", len(loaded.Tasks))
	}
}

func TestSQLiteStore_IsolatedByKey(t *testing.T) {
	store := newTestSQLiteStore(t)
	if err := store.Save("alice", testRecord()); err != nil {
		t.Fatalf("Save alice: %v", err)
	}
	if err := store.Save("bob", Record{}); err != nil {
		t.Fatalf("Save bob: %v", err)
	}
	aliceRec, ok := store.Load("alice")
	if !ok || len(aliceRec.History) != 3 {
		t.Fatalf("alice record disturbed: ok=%v %+v", ok, aliceRec)
	}
	bobRec, ok := store.Load("bob")
	if !ok || len(bobRec.History) != 0 {
		t.Fatalf("bob record unexpected: ok=%v %+v", ok, bobRec)
	}
}
