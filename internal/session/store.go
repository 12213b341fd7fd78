package session

import (
	"time"

	"assistant/internal/chat"
	"assistant/internal/tasks"
)

// Record 单个用户的持久化会话记录
// Record is the durable session unit for one user identity: full conversation
// history, tasks, and preferences.
type Record struct {
	History     []chat.Message    `json:"conversation_history"`
	Tasks       []tasks.Task      `json:"tasks"`
	Preferences map[string]string `json:"preferences"`
	LastUpdated string            `json:"last_updated"`
}

// Store 持久化接口，支持多后端 (JSON 文件 / SQLite)
// Store is the persistence interface supporting multiple backends.
//
// Load is deliberately lenient: a missing, unreadable, or corrupt record
// yields (zero Record, false) and never an error, so a broken file can never
// block startup. Save overwrites unconditionally, last writer wins.
type Store interface {
	Save(key string, rec Record) error
	Load(key string) (Record, bool)
	Close() error
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
