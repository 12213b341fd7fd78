package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"assistant/internal/assistant"
)

// REPL 行式交互循环：读取一行、交给助手、渲染回复。
// 命令语法与 HTTP 接口一致，另加 quit/exit/bye/goodbye 与 help。
// REPL is the line-based interactive loop: read a line, hand it to the
// assistant, render the reply. The free-text command grammar is the
// assistant's own; the loop adds quit/exit/bye/goodbye and help on top.
type REPL struct {
	assistant *assistant.Assistant
	input     LineInput
	out       io.Writer
	renderer  *Renderer
}

// New assembles the loop from its collaborators.
func New(a *assistant.Assistant, input LineInput, out io.Writer, renderer *Renderer) *REPL {
	if renderer == nil {
		renderer = NewRenderer(false, 80)
	}
	return &REPL{
		assistant: a,
		input:     input,
		out:       out,
		renderer:  renderer,
	}
}

// Run 运行循环直至用户退出或输入流结束
// Run drives the loop until the user quits or the input stream ends.
func (r *REPL) Run(ctx context.Context) error {
	defer r.input.Close()

	r.printWelcome()
	prompt := fmt.Sprintf("\n%s: ", r.assistant.UserName())

	for {
		line, err := r.input.ReadLine(prompt)
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "quit", "exit", "bye", "goodbye":
			fmt.Fprintln(r.out, r.renderer.AssistantReply(r.assistant.Name(), "Goodbye!"))
			return nil
		case "help":
			r.printHelp()
			continue
		}

		reply := r.assistant.Respond(ctx, line)
		fmt.Fprintln(r.out, r.renderer.AssistantReply(r.assistant.Name(), reply))
		// 改名后更新提示符 / pick up a renamed user in the prompt
		prompt = fmt.Sprintf("\n%s: ", r.assistant.UserName())
	}
}

func (r *REPL) printWelcome() {
	welcome := fmt.Sprintf(
		"Hello %s! I'm %s, your personal AI assistant. I'm here to help you with tasks, answer questions, and have conversations. What can I do for you today?",
		r.assistant.UserName(), r.assistant.Name())
	fmt.Fprintln(r.out, r.renderer.AssistantReply(r.assistant.Name(), welcome))
	fmt.Fprintln(r.out, r.renderer.Hint("Type 'help' for commands or 'quit' to exit."))
}

func (r *REPL) printHelp() {
	help := []string{
		"Commands:",
		"- add task [description] - Add a new task",
		"- show tasks - View your tasks",
		"- complete task [id] - Mark a task as completed",
		"- delete task [id] - Remove a task",
		"- clear tasks - Remove all tasks",
		"- clear history - Start a fresh conversation",
		"- save session - Save your conversation",
		"- set preference [key] [value] - Store a preference",
		"- show preferences - View your preferences",
		"- reset preferences - Restore default preferences",
		"- my name is [name] - Tell me your name",
		"- summary - Show the conversation summary",
		"- quit - Exit",
	}
	fmt.Fprintln(r.out, r.renderer.Hint(strings.Join(help, "\n")))
}
