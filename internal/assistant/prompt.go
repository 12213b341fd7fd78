package assistant

import (
	"fmt"
	"strings"
	"time"
)

// systemPromptLocked 生成当前时刻的系统提示词；每次补全调用前重新生成，
// 以便任务数量与时间戳保持新鲜。
// systemPromptLocked builds the system prompt for the current moment. It is
// regenerated before every completion call so the pending-task count and the
// timestamp stay fresh.
func (a *Assistant) systemPromptLocked() string {
	return buildSystemPrompt(a.opts.Name, a.opts.UserName, a.tasks.PendingCount(), time.Now())
}

func buildSystemPrompt(name, userName string, pendingTasks int, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a helpful personal AI assistant.\n", name)
	fmt.Fprintf(&b, "User's name: %s\n", userName)
	fmt.Fprintf(&b, "Current tasks: %d pending\n", pendingTasks)
	fmt.Fprintf(&b, "Current date and time: %s\n\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString("Be conversational, helpful, and remember our conversation context.\n")
	b.WriteString("If asked about tasks, refer to the task management system.")
	return b.String()
}
