package prefs

import (
	"fmt"
	"sort"
	"strings"
)

// Store 扁平的偏好键值表；键不做 schema 约束
// Store is the flat preference key-value map. Keys carry no schema beyond
// being non-empty; values are free-form strings.
type Store struct {
	values map[string]string
}

// NewStore 创建带默认偏好的存储（默认值来自助手的出厂行为）
// NewStore creates a store seeded with the assistant's default behavior.
func NewStore() *Store {
	return &Store{values: defaults()}
}

func defaults() map[string]string {
	return map[string]string{
		"response_style":   "friendly",
		"remember_context": "true",
		"task_reminders":   "true",
	}
}

// Set stores a preference. The key must be non-empty; it is lower-cased so
// lookups are case-insensitive.
func (s *Store) Set(key, value string) error {
	key = normalizeKey(key)
	if key == "" {
		return fmt.Errorf("preference key is empty")
	}
	s.values[key] = strings.TrimSpace(value)
	return nil
}

// Get returns the value for key and whether it is present.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.values[normalizeKey(key)]
	return v, ok
}

// Snapshot returns a copy of all preferences.
func (s *Store) Snapshot() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Load 合并持久化记录中的偏好；未覆盖的默认值保留
// Load merges persisted preferences over the defaults, keeping defaults that
// the record does not override.
func (s *Store) Load(values map[string]string) {
	s.values = defaults()
	for k, v := range values {
		k = normalizeKey(k)
		if k == "" {
			continue
		}
		s.values[k] = v
	}
}

// Reset restores the factory defaults.
func (s *Store) Reset() {
	s.values = defaults()
}

// Render formats the preferences as sorted "key = value" lines.
func (s *Store) Render() string {
	if len(s.values) == 0 {
		return "No preferences set."
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = %s\n", k, s.values[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
