package session

import (
	"os"
	"path/filepath"
	"testing"

	"assistant/internal/chat"
	"assistant/internal/tasks"
)

func testRecord() Record {
	return Record{
		History: []chat.Message{
			{Role: chat.RoleSystem, Content: "prompt", Timestamp: "2026-08-01T10:00:00Z"},
			{Role: chat.RoleUser, Content: "add task buy milk", Timestamp: "2026-08-01T10:00:05Z"},
			{Role: chat.RoleAssistant, Content: "done", Timestamp: "2026-08-01T10:00:06Z"},
		},
		Tasks: []tasks.Task{
			{ID: 1, Description: "buy milk", Priority: tasks.PriorityMedium, Status: tasks.StatusCompleted,
				Created: "2026-08-01T10:00:05Z", Completed: "2026-08-01T10:01:00Z"},
			{ID: 3, Description: "water plants", Priority: tasks.PriorityHigh, Status: tasks.StatusPending,
				Created: "2026-08-01T10:02:00Z"},
		},
		Preferences: map[string]string{"response_style": "formal"},
	}
}

func assertRoundTrip(t *testing.T, loaded Record) {
	t.Helper()
	if len(loaded.History) != 3 {
		t.Fatalf("history len=%d, want 3", len(loaded.History))
	}
	if loaded.History[1].Role != chat.RoleUser || loaded.History[1].Content != "add task buy milk" {
		t.Fatalf("history[1] unexpected: %+v", loaded.History[1])
	}
	if loaded.History[1].Timestamp != "2026-08-01T10:00:05Z" {
		t.Fatalf("timestamp lost: %+v", loaded.History[1])
	}
	if len(loaded.Tasks) != 2 {
		t.Fatalf("tasks len=%d, want 2", len(loaded.Tasks))
	}
	if loaded.Tasks[0].Status != tasks.StatusCompleted || loaded.Tasks[0].Completed == "" {
		t.Fatalf("completed task lost status: %+v", loaded.Tasks[0])
	}
	if loaded.Tasks[1].ID != 3 {
		t.Fatalf("task id changed: %+v", loaded.Tasks[1])
	}
	if loaded.Preferences["response_style"] != "formal" {
		t.Fatalf("preferences lost: %+v", loaded.Preferences)
	}
	if loaded.LastUpdated == "" {
		t.Fatal("last_updated not stamped on save")
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Save("Alice", testRecord()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, ok := store.Load("Alice")
	if !ok {
		t.Fatal("Load: record not found after save")
	}
	assertRoundTrip(t, loaded)
}

func TestFileStore_LoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, ok := store.Load("nobody"); ok {
		t.Fatal("Load should report no record for unknown key")
	}
}

func TestFileStore_LoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	path := filepath.Join(dir, "bob_session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	// 损坏的文件只降级为空会话，不报错 / corrupt file degrades silently
	if _, ok := store.Load("bob"); ok {
		t.Fatal("Load should treat a corrupt file as no prior session")
	}
}

func TestFileStore_KeySanitization(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Save("../Weird User!", Record{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want 1", len(entries))
	}
	name := entries[0].Name()
	if name != ".._weird_user__session.json" {
		t.Fatalf("sanitized name=%q", name)
	}
	if _, ok := store.Load("../Weird User!"); !ok {
		t.Fatal("sanitized key should load back")
	}
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Save("alice", testRecord()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save("alice", Record{}); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	loaded, ok := store.Load("alice")
	if !ok {
		t.Fatal("Load after overwrite")
	}
	if len(loaded.History) != 0 || len(loaded.Tasks) != 0 {
		t.Fatalf("overwrite did not replace record: %+v", loaded)
	}
}
