package assistant

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"assistant/internal/tasks"
)

// interpretLocked 命令解释器：对输入做大小写不敏感的子串匹配，
// 按固定顺序检查，首个命中即处理。未命中返回 false，由调用方
// 回落到补全服务。解释器自身从不报错。
// interpretLocked is the command interpreter. It matches the raw input
// against a fixed, ordered set of patterns with case-insensitive substring
// checks; the first hit wins because patterns overlap. No match returns
// false and the caller falls through to the completion call. The interpreter
// itself never fails; the worst case is a fallthrough.
func (a *Assistant) interpretLocked(userText string) (string, bool) {
	lower := strings.ToLower(userText)

	switch {
	case strings.Contains(lower, "add task") || strings.Contains(lower, "new task"):
		desc := stripPhrases(userText, "add task", "new task")
		if desc == "" {
			return "What task would you like me to add?", true
		}
		task, err := a.tasks.Add(desc, tasks.PriorityMedium)
		if err != nil {
			return "What task would you like me to add?", true
		}
		return fmt.Sprintf("✅ Task added: '%s' (Priority: %s)", task.Description, task.Priority), true

	case strings.Contains(lower, "complete task"):
		id, ok := trailingID(userText, "complete task")
		if !ok {
			return "Please provide a valid task ID.", true
		}
		task, found := a.tasks.Complete(id)
		if !found {
			return fmt.Sprintf("Task with ID %d not found.", id), true
		}
		return fmt.Sprintf("🎉 Task completed: '%s'", task.Description), true

	case strings.Contains(lower, "delete task"):
		id, ok := trailingID(userText, "delete task")
		if !ok {
			return "Please provide a valid task ID.", true
		}
		if a.tasks.Delete(id) == 0 {
			return fmt.Sprintf("Task with ID %d not found.", id), true
		}
		return "Task deleted.", true

	case strings.Contains(lower, "show tasks") ||
		strings.Contains(lower, "my tasks") ||
		strings.Contains(lower, "list tasks"):
		return tasks.Render(a.tasks.All()), true

	case strings.Contains(lower, "clear tasks"):
		a.tasks.Clear()
		return "All tasks have been cleared.", true

	case strings.Contains(lower, "clear history") || strings.Contains(lower, "clear conversation"):
		a.history.Clear(a.systemPromptLocked())
		return "🧹 Conversation history cleared. Starting fresh!", true

	case strings.Contains(lower, "save session"):
		if err := a.saveLocked(); err != nil {
			return fmt.Sprintf("❌ Error saving session: %v", err), true
		}
		return fmt.Sprintf("💾 Session saved for %s.", a.opts.UserName), true

	// "reset preferences" 含有 "set preference" 子串，必须先检查
	// "reset preferences" contains "set preference", so it is checked first.
	case strings.Contains(lower, "reset preferences"):
		a.prefs.Reset()
		return "Preferences reset to defaults.", true

	case strings.Contains(lower, "set preference"):
		key, value := splitPreference(stripPhrases(userText, "set preference"))
		if key == "" {
			return "Usage: set preference <key> <value>", true
		}
		if err := a.prefs.Set(key, value); err != nil {
			return "Usage: set preference <key> <value>", true
		}
		return fmt.Sprintf("Preference set: %s = %s", strings.ToLower(key), value), true

	case strings.Contains(lower, "show preferences") || strings.Contains(lower, "my preferences"):
		return a.prefs.Render(), true

	case strings.Contains(lower, "my name is"):
		name := titleCase(stripPhrases(lower, "my name is"))
		if name == "" {
			// 名字为空时不算命令，交给模型处理 / blank name falls through to the model
			return "", false
		}
		// 只改显示名，持久化键保持不变 / display name only; the session
		// stays under its original key
		a.opts.UserName = name
		a.history.SetSystemPrompt(a.systemPromptLocked())
		return fmt.Sprintf("Nice to meet you, %s! I'll remember your name.", name), true

	case strings.TrimSpace(lower) == "summary":
		return a.summaryLocked(), true
	}

	return "", false
}

// stripPhrases removes every phrase from the input, case-insensitively, and
// trims the remainder.
func stripPhrases(input string, phrases ...string) string {
	out := input
	for _, phrase := range phrases {
		for {
			idx := strings.Index(strings.ToLower(out), phrase)
			if idx < 0 {
				break
			}
			out = out[:idx] + out[idx+len(phrase):]
		}
	}
	return strings.TrimSpace(out)
}

// trailingID parses the first integer after the matched phrase.
func trailingID(input, phrase string) (int, bool) {
	rest := stripPhrases(input, phrase)
	for _, field := range strings.Fields(rest) {
		if id, err := strconv.Atoi(strings.Trim(field, ".,#")); err == nil {
			return id, true
		}
	}
	return 0, false
}

// splitPreference splits "key value..." into the key and the rest.
func splitPreference(rest string) (string, string) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", ""
	}
	key := fields[0]
	value := strings.TrimSpace(strings.TrimPrefix(rest, key))
	value = strings.TrimSpace(strings.TrimPrefix(value, "="))
	return key, value
}

// titleCase upper-cases the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
