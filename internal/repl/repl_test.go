package repl

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"assistant/internal/assistant"
	"assistant/internal/provider"
)

type scriptedProvider struct {
	reply string
}

func (p *scriptedProvider) Chat(_ context.Context, _ provider.ChatRequest) (provider.ChatResponse, error) {
	return provider.ChatResponse{Content: p.reply}, nil
}

func (p *scriptedProvider) Name() string          { return "scripted" }
func (p *scriptedProvider) CurrentModel() string  { return "scripted-model" }
func (p *scriptedProvider) SetModel(string) error { return nil }

func runScript(t *testing.T, lines ...string) string {
	t.Helper()
	a := assistant.New(
		assistant.Options{Name: "Dhee", UserName: "Alice"},
		&scriptedProvider{reply: "model says hi"},
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	var out bytes.Buffer
	input := NewBasicLineInput(strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	loop := New(a, input, &out, NewRenderer(false, 80))
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestRun_WelcomeAndQuit(t *testing.T) {
	out := runScript(t, "quit")
	if !strings.Contains(out, "Hello Alice! I'm Dhee") {
		t.Fatalf("welcome missing:\n%s", out)
	}
	if !strings.Contains(out, "Goodbye!") {
		t.Fatalf("goodbye missing:\n%s", out)
	}
}

func TestRun_CommandAndModelTurns(t *testing.T) {
	out := runScript(t, "add task buy milk", "what should I cook?", "bye")
	if !strings.Contains(out, "✅ Task added: 'buy milk' (Priority: medium)") {
		t.Fatalf("task confirmation missing:\n%s", out)
	}
	if !strings.Contains(out, "model says hi") {
		t.Fatalf("model reply missing:\n%s", out)
	}
}

func TestRun_Help(t *testing.T) {
	out := runScript(t, "help", "exit")
	if !strings.Contains(out, "add task [description]") {
		t.Fatalf("help missing:\n%s", out)
	}
}

func TestRun_PromptFollowsRename(t *testing.T) {
	out := runScript(t, "my name is bob", "quit")
	if !strings.Contains(out, "Nice to meet you, Bob!") {
		t.Fatalf("rename confirmation missing:\n%s", out)
	}
	if !strings.Contains(out, "\nBob: ") {
		t.Fatalf("prompt did not follow rename:\n%s", out)
	}
}

func TestRun_EOFExitsCleanly(t *testing.T) {
	a := assistant.New(
		assistant.Options{Name: "Dhee", UserName: "Alice"},
		&scriptedProvider{reply: "ok"},
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	var out bytes.Buffer
	input := NewBasicLineInput(strings.NewReader("hello"), &out)
	loop := New(a, input, &out, nil)
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run should treat EOF as a clean exit: %v", err)
	}
}
