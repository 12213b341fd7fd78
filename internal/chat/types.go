package chat

import (
	"strings"
	"time"
)

// 对话角色 / Conversation roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 一条带时间戳的对话消息
// Message is a role-tagged, timestamped conversation entry.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// New 构造一条带当前 UTC 时间戳的消息
// New builds a message stamped with the current UTC time (RFC3339).
func New(role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ValidRole reports whether role is one of the three allowed values.
func ValidRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}
