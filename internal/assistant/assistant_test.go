package assistant

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"assistant/internal/chat"
	"assistant/internal/provider"
	"assistant/internal/session"
)

type fakeProvider struct {
	reply   string
	err     error
	calls   int
	lastReq provider.ChatRequest
}

func (f *fakeProvider) Chat(_ context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return provider.ChatResponse{}, f.err
	}
	return provider.ChatResponse{Content: f.reply, FinishReason: "stop"}, nil
}

func (f *fakeProvider) Name() string          { return "fake" }
func (f *fakeProvider) CurrentModel() string  { return "fake-model" }
func (f *fakeProvider) SetModel(string) error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAssistant(t *testing.T, prov provider.Provider) *Assistant {
	t.Helper()
	store, err := session.NewFileStore(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return New(Options{Name: "Dhee", UserName: "Alice"}, prov, store, quietLogger())
}

func TestRespond_BlankInput(t *testing.T) {
	prov := &fakeProvider{reply: "hi"}
	a := newTestAssistant(t, prov)
	got := a.Respond(context.Background(), "   ")
	if got != "I didn't catch that. Could you please say something?" {
		t.Fatalf("reply=%q", got)
	}
	if prov.calls != 0 {
		t.Fatalf("provider called %d times for blank input", prov.calls)
	}
	if len(a.History()) != 0 {
		t.Fatalf("blank input mutated history: %+v", a.History())
	}
}

func TestRespond_ModelPath(t *testing.T) {
	prov := &fakeProvider{reply: "The capital of France is Paris."}
	a := newTestAssistant(t, prov)
	got := a.Respond(context.Background(), "What is the capital of France?")
	if got != prov.reply {
		t.Fatalf("reply=%q", got)
	}
	if prov.calls != 1 {
		t.Fatalf("calls=%d, want 1", prov.calls)
	}

	msgs := prov.lastReq.Messages
	if len(msgs) < 2 || msgs[0].Role != chat.RoleSystem {
		t.Fatalf("payload should start with a system message: %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "Dhee") || !strings.Contains(msgs[0].Content, "Alice") {
		t.Fatalf("system prompt missing identities: %q", msgs[0].Content)
	}
	for _, msg := range msgs {
		if msg.Timestamp != "" {
			t.Fatalf("timestamp leaked into payload: %+v", msg)
		}
	}

	hist := a.History()
	if len(hist) != 2 {
		t.Fatalf("history len=%d, want user+assistant", len(hist))
	}
	if hist[1].Role != chat.RoleAssistant || hist[1].Content != prov.reply {
		t.Fatalf("assistant turn not recorded: %+v", hist[1])
	}
}

func TestRespond_ModelFailure(t *testing.T) {
	prov := &fakeProvider{err: fmt.Errorf("connection refused")}
	a := newTestAssistant(t, prov)
	got := a.Respond(context.Background(), "hello")
	if !strings.HasPrefix(got, "I apologize, but I encountered an error:") {
		t.Fatalf("reply=%q", got)
	}
	if !strings.Contains(got, "connection refused") {
		t.Fatalf("error detail missing: %q", got)
	}
	hist := a.History()
	if len(hist) != 1 || hist[0].Role != chat.RoleUser {
		t.Fatalf("want only the user turn after failure, got %+v", hist)
	}
}

func TestRespond_ContextWindowBounded(t *testing.T) {
	prov := &fakeProvider{reply: "ok"}
	store, err := session.NewFileStore(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	a := New(Options{UserName: "Alice", ContextWindow: 4, HistoryMaxLen: 100, HistoryKeepRecent: 50},
		prov, store, quietLogger())

	for i := 0; i < 10; i++ {
		a.Respond(context.Background(), fmt.Sprintf("message %d", i))
	}
	// 1 条系统提示词 + 最多 4 条对话 / one system prompt plus at most 4 turns
	if len(prov.lastReq.Messages) != 5 {
		t.Fatalf("payload len=%d, want 5", len(prov.lastReq.Messages))
	}
	last := prov.lastReq.Messages[len(prov.lastReq.Messages)-1]
	if last.Content != "message 9" {
		t.Fatalf("window not anchored at the newest turn: %+v", last)
	}
}

func TestRespond_HistoryTruncation(t *testing.T) {
	prov := &fakeProvider{reply: "ok"}
	a := New(Options{UserName: "Alice", HistoryMaxLen: 11, HistoryKeepRecent: 6},
		prov, nil, quietLogger())
	for i := 0; i < 20; i++ {
		a.Respond(context.Background(), fmt.Sprintf("turn %d", i))
	}
	if n := len(a.History()); n > 10 {
		t.Fatalf("history len=%d, want bounded below max", n)
	}
}

func TestRespond_SessionPersistedAfterExchange(t *testing.T) {
	dir := t.TempDir()
	store, err := session.NewFileStore(dir, quietLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	prov := &fakeProvider{reply: "noted"}
	a := New(Options{UserName: "Alice"}, prov, store, quietLogger())
	a.Respond(context.Background(), "remember this")

	rec, ok := store.Load("Alice")
	if !ok {
		t.Fatal("session not persisted after exchange")
	}
	if len(rec.History) < 3 {
		t.Fatalf("persisted history too short: %d", len(rec.History))
	}
}

func TestSessionRestore(t *testing.T) {
	dir := t.TempDir()
	store, err := session.NewFileStore(dir, quietLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	prov := &fakeProvider{reply: "ok"}

	first := New(Options{UserName: "Alice"}, prov, store, quietLogger())
	if _, err := first.AddTask("water plants", "high"); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	first.Respond(context.Background(), "hello there")

	second := New(Options{UserName: "Alice"}, prov, store, quietLogger())
	taskList := second.Tasks()
	if len(taskList) != 1 || taskList[0].Description != "water plants" {
		t.Fatalf("tasks not restored: %+v", taskList)
	}
	if len(second.History()) == 0 {
		t.Fatal("history not restored")
	}

	// ID 计数器越过已恢复的最大值 / counter advances past the restored max
	task, err := second.AddTask("buy milk", "")
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if task.ID != 2 {
		t.Fatalf("restored counter gave id=%d, want 2", task.ID)
	}
}

func TestRespond_FailurePersistsUserTurn(t *testing.T) {
	store, err := session.NewFileStore(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	prov := &fakeProvider{err: fmt.Errorf("connection refused")}
	a := New(Options{UserName: "Alice"}, prov, store, quietLogger())
	a.Respond(context.Background(), "remember this even on failure")

	rec, ok := store.Load("Alice")
	if !ok {
		t.Fatal("session not persisted after failed completion call")
	}
	last := rec.History[len(rec.History)-1]
	if last.Role != chat.RoleUser || last.Content != "remember this even on failure" {
		t.Fatalf("user turn not committed: %+v", last)
	}
	for _, msg := range rec.History {
		if msg.Role == chat.RoleAssistant {
			t.Fatalf("phantom assistant turn persisted: %+v", msg)
		}
	}
}

func TestRename_KeepsSessionKey(t *testing.T) {
	store, err := session.NewFileStore(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	a := New(Options{UserName: "Alice"}, &fakeProvider{reply: "ok"}, store, quietLogger())

	a.Respond(context.Background(), "my name is bob")
	if a.UserName() != "Bob" {
		t.Fatalf("display name=%q, want Bob", a.UserName())
	}
	if _, err := a.AddTask("water plants", ""); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	rec, ok := store.Load("Alice")
	if !ok || len(rec.Tasks) != 1 {
		t.Fatalf("record left its original key: ok=%v tasks=%+v", ok, rec.Tasks)
	}
	if _, ok := store.Load("Bob"); ok {
		t.Fatal("rename must not move the record to a new key")
	}
}

func TestRegistry_SharedAndIsolated(t *testing.T) {
	store, err := session.NewFileStore(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	reg := NewRegistry(Options{UserName: "User"}, &fakeProvider{reply: "ok"}, store, quietLogger())

	if reg.Get("alice") != reg.Get("alice") {
		t.Fatal("same user should share one instance")
	}
	if reg.Get("alice") == reg.Get("bob") {
		t.Fatal("distinct users must not share an instance")
	}
	if reg.Default().UserName() != "User" {
		t.Fatalf("default user=%q", reg.Default().UserName())
	}

	if _, err := reg.Get("alice").AddTask("alice task", ""); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if len(reg.Get("bob").Tasks()) != 0 {
		t.Fatal("bob sees alice's tasks")
	}
}

func TestRegistry_RenameDoesNotForkSession(t *testing.T) {
	store, err := session.NewFileStore(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	reg := NewRegistry(Options{UserName: "User"}, &fakeProvider{reply: "ok"}, store, quietLogger())
	ctx := context.Background()

	alice := reg.Get("alice")
	alice.Respond(ctx, "my name is bob")
	if reg.Get("alice") != alice {
		t.Fatal("registry lost the alice instance after rename")
	}

	// “bob” 是另一个会话，两条记录互不覆盖
	// "bob" is a separate session; neither record clobbers the other.
	bob := reg.Get("bob")
	if bob == alice {
		t.Fatal("rename must not alias a different registry key")
	}
	if _, err := alice.AddTask("from alice instance", ""); err != nil {
		t.Fatalf("AddTask alice: %v", err)
	}
	if _, err := bob.AddTask("from bob instance", ""); err != nil {
		t.Fatalf("AddTask bob: %v", err)
	}

	recA, ok := store.Load("alice")
	if !ok || len(recA.Tasks) != 1 || recA.Tasks[0].Description != "from alice instance" {
		t.Fatalf("alice record disturbed: ok=%v %+v", ok, recA.Tasks)
	}
	recB, ok := store.Load("bob")
	if !ok || len(recB.Tasks) != 1 || recB.Tasks[0].Description != "from bob instance" {
		t.Fatalf("bob record disturbed: ok=%v %+v", ok, recB.Tasks)
	}
}
