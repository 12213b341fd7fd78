package history

import (
	"iter"
	"strings"

	"assistant/internal/chat"
)

// Log 会话历史：有序、带时间戳的消息日志，持有截断与上下文窗口逻辑
// Log is the ordered conversation history. It owns truncation and
// context-window selection; callers never slice the message list directly.
type Log struct {
	messages []chat.Message
}

// New 创建历史日志；systemPrompt 非空时作为第一条 system 消息写入
// New creates a log, seeded with a system message when systemPrompt is non-empty.
func New(systemPrompt string) *Log {
	l := &Log{}
	if strings.TrimSpace(systemPrompt) != "" {
		l.messages = append(l.messages, chat.New(chat.RoleSystem, systemPrompt))
	}
	return l
}

// Append 追加一条带时间戳的消息；role 非法时静默忽略
// Append adds a timestamped message. Unknown roles are dropped.
func (l *Log) Append(role, content string) {
	if !chat.ValidRole(role) {
		return
	}
	l.messages = append(l.messages, chat.New(role, content))
}

// Len returns the total message count, system prompt included.
func (l *Log) Len() int {
	return len(l.messages)
}

// Messages returns a copy of the full ordered history.
func (l *Log) Messages() []chat.Message {
	return append([]chat.Message(nil), l.messages...)
}

// Load 整体替换历史（从持久化记录恢复时使用）
// Load replaces the history wholesale, used when restoring a persisted session.
func (l *Log) Load(messages []chat.Message) {
	l.messages = append([]chat.Message(nil), messages...)
}

// ContextWindow 返回最近 limit 条 user/assistant 消息的惰性序列（去除时间戳），
// 即发送给补全服务的会话部分。序列可重复迭代，基于调用时的快照。
// ContextWindow returns a lazy, restartable sequence of the most recent limit
// user/assistant messages with timestamps stripped. This is exactly the
// conversation slice sent to the completion service; the system prompt is
// generated fresh by the caller and prepended there.
func (l *Log) ContextWindow(limit int) iter.Seq[chat.Message] {
	window := l.windowSlice(limit)
	return func(yield func(chat.Message) bool) {
		for _, msg := range window {
			if !yield(chat.Message{Role: msg.Role, Content: msg.Content}) {
				return
			}
		}
	}
}

func (l *Log) windowSlice(limit int) []chat.Message {
	if limit <= 0 {
		return nil
	}
	window := make([]chat.Message, 0, limit)
	for i := len(l.messages) - 1; i >= 0 && len(window) < limit; i-- {
		msg := l.messages[i]
		if msg.Role == chat.RoleSystem {
			continue
		}
		window = append(window, msg)
	}
	// 逆序收集，翻转回原始顺序 / collected newest-first, restore original order
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window
}

// Truncate 当消息总数超过 maxLen 时，保留前 keepHead 条（system 前缀）
// 与后 keepTail 条，丢弃中间部分。返回是否发生了截断。
// Truncate keeps the first keepHead messages (the system prefix) and the last
// keepTail messages once total count exceeds maxLen, discarding the middle.
// It reports whether anything was discarded. Policy: invoked after every
// append, never implicitly inside ContextWindow.
func (l *Log) Truncate(maxLen, keepHead, keepTail int) bool {
	if maxLen <= 0 || len(l.messages) <= maxLen {
		return false
	}
	if keepHead < 0 {
		keepHead = 0
	}
	if keepTail < 0 {
		keepTail = 0
	}
	if keepHead+keepTail >= len(l.messages) {
		return false
	}
	kept := make([]chat.Message, 0, keepHead+keepTail)
	kept = append(kept, l.messages[:keepHead]...)
	kept = append(kept, l.messages[len(l.messages)-keepTail:]...)
	l.messages = kept
	return true
}

// Clear 清空历史并重新写入新的 system 消息；终态与初始态相同
// Clear resets the history to a single freshly generated system message.
// The terminal state equals the initial state.
func (l *Log) Clear(systemPrompt string) {
	l.messages = l.messages[:0]
	if strings.TrimSpace(systemPrompt) != "" {
		l.messages = append(l.messages, chat.New(chat.RoleSystem, systemPrompt))
	}
}

// SetSystemPrompt 更新头部 system 消息内容；若头部不是 system 消息则插入
// SetSystemPrompt rewrites the leading system message, inserting one when the
// history does not start with a system entry (e.g. after restoring an old
// record that excluded it).
func (l *Log) SetSystemPrompt(prompt string) {
	if strings.TrimSpace(prompt) == "" {
		return
	}
	if len(l.messages) > 0 && l.messages[0].Role == chat.RoleSystem {
		l.messages[0].Content = prompt
		return
	}
	l.messages = append([]chat.Message{chat.New(chat.RoleSystem, prompt)}, l.messages...)
}

// CountByRole returns how many messages carry the given role.
func (l *Log) CountByRole(role string) int {
	n := 0
	for _, msg := range l.messages {
		if msg.Role == role {
			n++
		}
	}
	return n
}

// EstimatedTokens 估算当前历史的 token 总量（用于 summary 展示）
// EstimatedTokens estimates the token footprint of the full history.
func (l *Log) EstimatedTokens() int {
	return DefaultTokenizer().Count(l.messages)
}
