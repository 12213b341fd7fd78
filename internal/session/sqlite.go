package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"assistant/internal/chat"
	"assistant/internal/tasks"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的会话持久化实现
// SQLiteStore implements Store on SQLite with WAL mode. One row per user in
// sessions, with messages and tasks in child tables keyed by user_key.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes the SQLite database.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}
	store := &SQLiteStore{db: db, logger: logger}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		user_key     TEXT PRIMARY KEY,
		preferences  TEXT NOT NULL DEFAULT '{}',
		last_updated TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		user_key   TEXT NOT NULL REFERENCES sessions(user_key) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT '',
		UNIQUE(user_key, seq)
	);

	CREATE TABLE IF NOT EXISTS tasks (
		user_key     TEXT NOT NULL REFERENCES sessions(user_key) ON DELETE CASCADE,
		id           INTEGER NOT NULL,
		description  TEXT NOT NULL,
		priority     TEXT NOT NULL DEFAULT 'medium',
		status       TEXT NOT NULL DEFAULT 'pending',
		created_at   TEXT NOT NULL DEFAULT '',
		completed_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY(user_key, id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_key, seq);
	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_key);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库连接 / Close the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the stored record for key inside one transaction.
func (s *SQLiteStore) Save(key string, rec Record) error {
	key = sanitizeKey(key)
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prefsJSON := "{}"
	if len(rec.Preferences) > 0 {
		data, marshalErr := json.Marshal(rec.Preferences)
		if marshalErr == nil {
			prefsJSON = string(data)
		}
	}
	now := nowUTC()
	if _, err := tx.Exec(`
		INSERT INTO sessions (user_key, preferences, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(user_key) DO UPDATE SET preferences=excluded.preferences, last_updated=excluded.last_updated`,
		key, prefsJSON, now); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM messages WHERE user_key=?", key); err != nil {
		return fmt.Errorf("delete old messages: %w", err)
	}
	msgStmt, err := tx.Prepare("INSERT INTO messages (user_key, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer msgStmt.Close()
	for i, msg := range rec.History {
		if _, err := msgStmt.Exec(key, i, msg.Role, msg.Content, msg.Timestamp); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM tasks WHERE user_key=?", key); err != nil {
		return fmt.Errorf("delete old tasks: %w", err)
	}
	taskStmt, err := tx.Prepare(`
		INSERT INTO tasks (user_key, id, description, priority, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare task insert: %w", err)
	}
	defer taskStmt.Close()
	for _, task := range rec.Tasks {
		if _, err := taskStmt.Exec(key, task.ID, task.Description,
			tasks.NormalizePriority(task.Priority), tasks.NormalizeStatus(task.Status),
			task.Created, task.Completed); err != nil {
			return fmt.Errorf("insert task %d: %w", task.ID, err)
		}
	}

	return tx.Commit()
}

// Load reads the record for key. Misses and scan failures degrade to a zero
// record, matching the lenient-load contract of the file backend.
func (s *SQLiteStore) Load(key string) (Record, bool) {
	key = sanitizeKey(key)
	row := s.db.QueryRow("SELECT preferences, last_updated FROM sessions WHERE user_key=?", key)

	var rec Record
	var prefsJSON string
	if err := row.Scan(&prefsJSON, &rec.LastUpdated); err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("session row scan failed, starting fresh", "key", key, "error", err)
		}
		return Record{}, false
	}
	if prefsJSON != "" {
		if err := json.Unmarshal([]byte(prefsJSON), &rec.Preferences); err != nil {
			s.logger.Warn("preferences parse failed, dropping", "key", key, "error", err)
			rec.Preferences = nil
		}
	}

	history, err := s.loadMessages(key)
	if err != nil {
		s.logger.Warn("message load failed, starting fresh", "key", key, "error", err)
		return Record{}, false
	}
	rec.History = history

	taskList, err := s.loadTasks(key)
	if err != nil {
		s.logger.Warn("task load failed, starting fresh", "key", key, "error", err)
		return Record{}, false
	}
	rec.Tasks = taskList
	return rec, true
}

func (s *SQLiteStore) loadMessages(key string) ([]chat.Message, error) {
	rows, err := s.db.Query("SELECT role, content, created_at FROM messages WHERE user_key=? ORDER BY seq", key)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var msg chat.Message
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadTasks(key string) ([]tasks.Task, error) {
	rows, err := s.db.Query(`
		SELECT id, description, priority, status, created_at, completed_at
		FROM tasks WHERE user_key=? ORDER BY id`, key)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []tasks.Task
	for rows.Next() {
		var task tasks.Task
		if err := rows.Scan(&task.ID, &task.Description, &task.Priority,
			&task.Status, &task.Created, &task.Completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}
