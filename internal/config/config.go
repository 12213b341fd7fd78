package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type ProviderConfig struct {
	BaseURL     string   `json:"base_url"`
	Model       string   `json:"model"`
	Models      []string `json:"models"`
	APIKey      string   `json:"api_key"`
	TimeoutMS   int      `json:"timeout_ms"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float32  `json:"temperature"`
}

type AssistantConfig struct {
	// Name 助手的自称；注入系统提示词 / Name is what the assistant calls
	// itself; it is embedded in the system prompt.
	Name        string `json:"name"`
	DefaultUser string `json:"default_user"`
	// HistoryMaxLen 触发截断的历史长度上限 / history length that triggers truncation.
	HistoryMaxLen int `json:"history_max_len"`
	// HistoryKeepRecent 截断时保留的最近消息数 / recent messages kept on truncation.
	HistoryKeepRecent int `json:"history_keep_recent"`
	// ContextWindow 每次补全调用携带的对话消息数 / conversation messages per completion call.
	ContextWindow int `json:"context_window"`
}

type StorageConfig struct {
	// Backend 取值 json 或 sqlite / one of "json" or "sqlite".
	Backend string `json:"backend"`
	BaseDir string `json:"base_dir"`
}

type ServerConfig struct {
	Addr           string `json:"addr"`
	ReadTimeoutMS  int    `json:"read_timeout_ms"`
	WriteTimeoutMS int    `json:"write_timeout_ms"`
}

type Config struct {
	Provider  ProviderConfig  `json:"provider"`
	Assistant AssistantConfig `json:"assistant"`
	Storage   StorageConfig   `json:"storage"`
	Server    ServerConfig    `json:"server"`
}

type fileAssistantConfig struct {
	Name              *string `json:"name"`
	DefaultUser       *string `json:"default_user"`
	HistoryMaxLen     *int    `json:"history_max_len"`
	HistoryKeepRecent *int    `json:"history_keep_recent"`
	ContextWindow     *int    `json:"context_window"`
}

type fileConfig struct {
	Provider  *ProviderConfig      `json:"provider"`
	Assistant *fileAssistantConfig `json:"assistant"`
	Storage   *StorageConfig       `json:"storage"`
	Server    *ServerConfig        `json:"server"`
}

func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.1-8b-instant",
			Models:      []string{"llama-3.1-8b-instant"},
			TimeoutMS:   30000,
			MaxTokens:   DefaultProviderMaxTokens,
			Temperature: DefaultProviderTemperature,
		},
		Assistant: AssistantConfig{
			Name:              "Dhee",
			DefaultUser:       "User",
			HistoryMaxLen:     DefaultHistoryMaxLen,
			HistoryKeepRecent: DefaultHistoryKeepRecent,
			ContextWindow:     DefaultContextWindow,
		},
		Storage: StorageConfig{
			Backend: "json",
			BaseDir: "~/.assistant",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeoutMS:  15000,
			WriteTimeoutMS: 60000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("ASSISTANT_CONFIG_PATH")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".assistant", "config.json")}
}

func findProjectConfigPath() string {
	candidates := []string{
		"assistant.config.json",
		".assistant/config.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	cleaned := stripJSONComments(data)
	var fileCfg fileConfig
	if err := json.Unmarshal(cleaned, &fileCfg); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Provider != nil {
		cfg.Provider = mergeProvider(cfg.Provider, *fc.Provider)
	}
	if fc.Assistant != nil {
		if fc.Assistant.Name != nil {
			cfg.Assistant.Name = *fc.Assistant.Name
		}
		if fc.Assistant.DefaultUser != nil {
			cfg.Assistant.DefaultUser = *fc.Assistant.DefaultUser
		}
		if fc.Assistant.HistoryMaxLen != nil {
			cfg.Assistant.HistoryMaxLen = *fc.Assistant.HistoryMaxLen
		}
		if fc.Assistant.HistoryKeepRecent != nil {
			cfg.Assistant.HistoryKeepRecent = *fc.Assistant.HistoryKeepRecent
		}
		if fc.Assistant.ContextWindow != nil {
			cfg.Assistant.ContextWindow = *fc.Assistant.ContextWindow
		}
	}
	if fc.Storage != nil {
		cfg.Storage = mergeStorage(cfg.Storage, *fc.Storage)
	}
	if fc.Server != nil {
		cfg.Server = mergeServer(cfg.Server, *fc.Server)
	}
}

func mergeProvider(base ProviderConfig, override ProviderConfig) ProviderConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if len(override.Models) > 0 {
		base.Models = append([]string(nil), override.Models...)
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.Temperature > 0 {
		base.Temperature = override.Temperature
	}
	return base
}

func mergeStorage(base StorageConfig, override StorageConfig) StorageConfig {
	if strings.TrimSpace(override.Backend) != "" {
		base.Backend = override.Backend
	}
	if strings.TrimSpace(override.BaseDir) != "" {
		base.BaseDir = override.BaseDir
	}
	return base
}

func mergeServer(base ServerConfig, override ServerConfig) ServerConfig {
	if strings.TrimSpace(override.Addr) != "" {
		base.Addr = override.Addr
	}
	if override.ReadTimeoutMS > 0 {
		base.ReadTimeoutMS = override.ReadTimeoutMS
	}
	if override.WriteTimeoutMS > 0 {
		base.WriteTimeoutMS = override.WriteTimeoutMS
	}
	return base
}

func normalize(cfg *Config) error {
	def := Default()

	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = def.Provider.BaseURL
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = def.Provider.TimeoutMS
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = def.Provider.MaxTokens
	}
	if cfg.Provider.Temperature <= 0 {
		cfg.Provider.Temperature = def.Provider.Temperature
	}
	cfg.Provider.Models = normalizeModelList(cfg.Provider.Models)
	if len(cfg.Provider.Models) == 0 {
		cfg.Provider.Models = append(cfg.Provider.Models, cfg.Provider.Model)
	}
	if !containsString(cfg.Provider.Models, cfg.Provider.Model) {
		cfg.Provider.Models = append([]string{cfg.Provider.Model}, cfg.Provider.Models...)
	}

	if strings.TrimSpace(cfg.Assistant.Name) == "" {
		cfg.Assistant.Name = def.Assistant.Name
	}
	if strings.TrimSpace(cfg.Assistant.DefaultUser) == "" {
		cfg.Assistant.DefaultUser = def.Assistant.DefaultUser
	}
	if cfg.Assistant.HistoryMaxLen <= 0 {
		cfg.Assistant.HistoryMaxLen = def.Assistant.HistoryMaxLen
	}
	if cfg.Assistant.HistoryKeepRecent <= 0 {
		cfg.Assistant.HistoryKeepRecent = def.Assistant.HistoryKeepRecent
	}
	// 截断后长度必须低于触发阈值，否则每条消息都会触发截断
	// Truncation must land below the trigger length or every append re-truncates.
	if cfg.Assistant.HistoryKeepRecent >= cfg.Assistant.HistoryMaxLen {
		return fmt.Errorf("history_keep_recent (%d) must be below history_max_len (%d)",
			cfg.Assistant.HistoryKeepRecent, cfg.Assistant.HistoryMaxLen)
	}
	if cfg.Assistant.ContextWindow <= 0 {
		cfg.Assistant.ContextWindow = def.Assistant.ContextWindow
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	switch backend {
	case "", "json", "file":
		backend = "json"
	case "sqlite", "sqlite3":
		backend = "sqlite"
	default:
		return fmt.Errorf("unknown storage backend %q (want json or sqlite)", cfg.Storage.Backend)
	}
	cfg.Storage.Backend = backend

	storageDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	if storageDir == "" {
		storageDir, err = expandPath(def.Storage.BaseDir)
		if err != nil {
			return err
		}
	}
	cfg.Storage.BaseDir = storageDir

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.ReadTimeoutMS <= 0 {
		cfg.Server.ReadTimeoutMS = def.Server.ReadTimeoutMS
	}
	if cfg.Server.WriteTimeoutMS <= 0 {
		cfg.Server.WriteTimeoutMS = def.Server.WriteTimeoutMS
	}

	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("ASSISTANT_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSISTANT_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSISTANT_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("GROQ_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSISTANT_NAME")); v != "" {
		cfg.Assistant.Name = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSISTANT_USER")); v != "" {
		cfg.Assistant.DefaultUser = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSISTANT_STORAGE_BACKEND")); v != "" {
		cfg.Storage.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSISTANT_STORAGE_DIR")); v != "" {
		cfg.Storage.BaseDir = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSISTANT_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSISTANT_CONTEXT_WINDOW")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid ASSISTANT_CONTEXT_WINDOW: %q", v)
		}
		cfg.Assistant.ContextWindow = n
	}

	return cfg, normalize(&cfg)
}

func normalizeModelList(models []string) []string {
	out := make([]string, 0, len(models))
	seen := map[string]struct{}{}
	for _, m := range models {
		trimmed := strings.TrimSpace(m)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func containsString(items []string, needle string) bool {
	for _, item := range items {
		if item == needle {
			return true
		}
	}
	return false
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}
	return out.Bytes()
}
