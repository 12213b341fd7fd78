package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileStore 每个用户一个 JSON 文件的持久化实现（规范要求的可读格式）
// FileStore keeps one human-readable JSON file per user identity under a base
// directory, named "<key>_session.json".
type FileStore struct {
	baseDir string
	logger  *slog.Logger
}

// NewFileStore creates the base directory and returns a file-backed store.
func NewFileStore(baseDir string, logger *slog.Logger) (*FileStore, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		return nil, fmt.Errorf("session base dir is empty")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir %s: %w", baseDir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{baseDir: baseDir, logger: logger}, nil
}

// Save serializes the record to "<key>_session.json", overwriting any
// previous content.
func (s *FileStore) Save(key string, rec Record) error {
	rec.LastUpdated = nowUTC()
	if rec.Preferences == nil {
		rec.Preferences = map[string]string{}
	}
	return writeJSONFile(s.recordPath(key), rec)
}

// Load 宽松加载：文件缺失、不可读或损坏都视为“无历史会话”
// Load reads the record for key. Any miss or parse failure is logged and
// reported as "no prior session"; the caller gets a zero record.
func (s *FileStore) Load(key string) (Record, bool) {
	path := s.recordPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("session read failed, starting fresh", "path", path, "error", err)
		}
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("session parse failed, starting fresh", "path", path, "error", err)
		return Record{}, false
	}
	return rec, true
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) recordPath(key string) string {
	return filepath.Join(s.baseDir, sanitizeKey(key)+"_session.json")
}

// sanitizeKey 将用户标识归一化为安全的文件名片段
// sanitizeKey reduces a user identity to a safe filename fragment.
func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
