package repl

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Renderer 终端输出渲染：助手名用 lipgloss 着色，回复按 markdown 渲染。
// styled 为 false 时输出纯文本（管道或测试场景）。
// Renderer formats terminal output: the assistant name is styled with
// lipgloss and replies are rendered as markdown. With styled=false it emits
// plain text, for pipes and tests.
type Renderer struct {
	styled    bool
	width     int
	nameStyle lipgloss.Style
	dimStyle  lipgloss.Style
}

// NewRenderer creates a renderer. width bounds markdown word wrap.
func NewRenderer(styled bool, width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	return &Renderer{
		styled:    styled,
		width:     width,
		nameStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true),
		dimStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
}

// AssistantReply formats one assistant reply with the speaker prefix.
func (r *Renderer) AssistantReply(name, text string) string {
	prefix := "🤖 " + name + ":"
	if r.styled {
		prefix = r.nameStyle.Render(prefix)
		text = r.renderMarkdown(text)
	}
	if strings.Contains(text, "\n") {
		return prefix + "\n" + text
	}
	return prefix + " " + text
}

// Hint formats secondary text such as the command help.
func (r *Renderer) Hint(text string) string {
	if r.styled {
		return r.dimStyle.Render(text)
	}
	return text
}

func (r *Renderer) renderMarkdown(content string) string {
	if strings.TrimSpace(content) == "" {
		return content
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}
