package prefs

import (
	"strings"
	"testing"
)

func TestStore_Defaults(t *testing.T) {
	s := NewStore()
	if v, ok := s.Get("response_style"); !ok || v != "friendly" {
		t.Fatalf("response_style=%q ok=%v, want friendly/true", v, ok)
	}
}

func TestStore_SetGet(t *testing.T) {
	s := NewStore()
	if err := s.Set("Response_Style", "formal"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := s.Get("response_style"); v != "formal" {
		t.Fatalf("value=%q, want formal", v)
	}
	if err := s.Set("  ", "x"); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestStore_LoadMergesOverDefaults(t *testing.T) {
	s := NewStore()
	s.Set("custom", "kept before load")
	s.Load(map[string]string{"response_style": "concise", "timezone": "UTC"})

	if v, _ := s.Get("response_style"); v != "concise" {
		t.Fatalf("override lost: %q", v)
	}
	if v, _ := s.Get("timezone"); v != "UTC" {
		t.Fatalf("loaded key missing: %q", v)
	}
	// Load 整体替换：记录之外的旧键不保留 / Load replaces; stale keys drop
	if _, ok := s.Get("custom"); ok {
		t.Fatal("stale key survived Load")
	}
	if _, ok := s.Get("task_reminders"); !ok {
		t.Fatal("default missing after Load")
	}
}

func TestStore_Render(t *testing.T) {
	s := NewStore()
	s.Set("alpha", "1")
	out := s.Render()
	if !strings.Contains(out, "alpha = 1") {
		t.Fatalf("Render missing entry:\n%s", out)
	}
	if !strings.HasPrefix(out, "alpha") {
		t.Fatalf("Render not sorted:\n%s", out)
	}
}
