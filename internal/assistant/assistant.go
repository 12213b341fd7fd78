package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"assistant/internal/chat"
	"assistant/internal/config"
	"assistant/internal/history"
	"assistant/internal/prefs"
	"assistant/internal/provider"
	"assistant/internal/session"
	"assistant/internal/tasks"
)

// Options 单个助手实例的运行参数
// Options holds the runtime parameters for one assistant instance.
type Options struct {
	Name              string
	UserName          string
	HistoryMaxLen     int
	HistoryKeepRecent int
	ContextWindow     int
	MaxTokens         int
	Temperature       float32
}

// OptionsFromConfig maps the loaded configuration onto assistant options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Name:              cfg.Assistant.Name,
		UserName:          cfg.Assistant.DefaultUser,
		HistoryMaxLen:     cfg.Assistant.HistoryMaxLen,
		HistoryKeepRecent: cfg.Assistant.HistoryKeepRecent,
		ContextWindow:     cfg.Assistant.ContextWindow,
		MaxTokens:         cfg.Provider.MaxTokens,
		Temperature:       cfg.Provider.Temperature,
	}
}

func (o *Options) normalize() {
	if strings.TrimSpace(o.Name) == "" {
		o.Name = "Dhee"
	}
	if strings.TrimSpace(o.UserName) == "" {
		o.UserName = "User"
	}
	if o.HistoryMaxLen <= 0 {
		o.HistoryMaxLen = config.DefaultHistoryMaxLen
	}
	if o.HistoryKeepRecent <= 0 || o.HistoryKeepRecent >= o.HistoryMaxLen {
		o.HistoryKeepRecent = o.HistoryMaxLen / 2
	}
	if o.ContextWindow <= 0 {
		o.ContextWindow = config.DefaultContextWindow
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = config.DefaultProviderMaxTokens
	}
	if o.Temperature <= 0 {
		o.Temperature = config.DefaultProviderTemperature
	}
}

// Assistant 会话编排器：组合历史、任务、偏好与补全服务，
// 所有修改会话状态的操作都经过同一把互斥锁串行化。
// Assistant is the per-session orchestrator composing history, tasks,
// preferences, the completion provider and persistence. All state mutations
// for a session are serialized through one mutex, so one instance can sit
// behind concurrent HTTP handlers.
type Assistant struct {
	mu       sync.Mutex
	opts     Options
	provider provider.Provider
	store    session.Store
	logger   *slog.Logger

	// sessionKey 持久化键；构造后不变，改名只影响显示名
	// sessionKey is the persistence key. It is fixed at construction so a
	// rename never forks or collides session records; renames only change
	// the display name in opts.UserName.
	sessionKey string

	history *history.Log
	tasks   *tasks.Store
	prefs   *prefs.Store
}

// New 创建助手并尝试恢复该用户已持久化的会话
// New creates an assistant and restores any persisted session for the user.
// A missing or unreadable record starts a fresh session, never an error.
func New(opts Options, prov provider.Provider, store session.Store, logger *slog.Logger) *Assistant {
	opts.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assistant{
		opts:       opts,
		provider:   prov,
		store:      store,
		logger:     logger,
		sessionKey: opts.UserName,
		tasks:      tasks.NewStore(),
		prefs:      prefs.NewStore(),
	}
	a.history = history.New("")

	if store != nil {
		if rec, ok := store.Load(a.sessionKey); ok {
			a.history.Load(rec.History)
			a.tasks.Load(rec.Tasks)
			a.prefs.Load(rec.Preferences)
			logger.Info("session restored",
				"user", opts.UserName,
				"messages", a.history.Len(),
				"tasks", a.tasks.Len())
		}
	}
	// 系统提示词始终重新生成，不信任持久化的旧副本
	// The system prompt is always regenerated, never trusted from disk.
	a.history.SetSystemPrompt(a.systemPromptLocked())
	return a
}

// Name returns the assistant's display name.
func (a *Assistant) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opts.Name
}

// UserName returns the current user identity.
func (a *Assistant) UserName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opts.UserName
}

// Respond 处理一条用户输入：空输入直接提示；命令走快路径；
// 否则携带系统提示词与上下文窗口调用补全服务。
// Respond handles one user exchange. Blank input gets a fixed re-prompt with
// no state mutation. Matched commands are handled locally; everything else
// goes to the completion service with a fresh system prompt plus the recent
// context window. On call failure the user turn stays recorded, no assistant
// turn is added, and an apology string carries the error detail.
func (a *Assistant) Respond(ctx context.Context, userText string) string {
	if strings.TrimSpace(userText) == "" {
		return "I didn't catch that. Could you please say something?"
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.history.Append(chat.RoleUser, userText)
	a.truncateLocked()

	if reply, handled := a.interpretLocked(userText); handled {
		a.persistLocked()
		return reply
	}

	payload := make([]chat.Message, 0, a.opts.ContextWindow+1)
	payload = append(payload, chat.Message{Role: chat.RoleSystem, Content: a.systemPromptLocked()})
	for msg := range a.history.ContextWindow(a.opts.ContextWindow) {
		payload = append(payload, msg)
	}

	resp, err := a.provider.Chat(ctx, provider.ChatRequest{
		Messages:    payload,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	})
	if err != nil {
		a.logger.Warn("completion call failed", "user", a.opts.UserName, "error", err)
		// 用户消息已入库，失败前也要落盘 / the user turn is committed; persist
		// it so a restart after the failure does not drop it
		a.persistLocked()
		return fmt.Sprintf("I apologize, but I encountered an error: %v. Please try again.", err)
	}

	a.history.Append(chat.RoleAssistant, resp.Content)
	a.truncateLocked()
	a.persistLocked()
	return resp.Content
}

// AddTask adds a pending task and persists the session.
func (a *Assistant) AddTask(description, priority string) (tasks.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	task, err := a.tasks.Add(description, priority)
	if err != nil {
		return tasks.Task{}, err
	}
	a.persistLocked()
	return task, nil
}

// Tasks returns the full ordered task list.
func (a *Assistant) Tasks() []tasks.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasks.All()
}

// TasksByStatus returns the tasks matching the given status, in creation order.
func (a *Assistant) TasksByStatus(status string) []tasks.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasks.Filter(status)
}

// CompleteTask marks the task completed. The bool reports whether it exists.
func (a *Assistant) CompleteTask(id int) (tasks.Task, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	task, ok := a.tasks.Complete(id)
	if ok {
		a.persistLocked()
	}
	return task, ok
}

// DeleteTask removes the task and reports how many entries were removed.
func (a *Assistant) DeleteTask(id int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := a.tasks.Delete(id)
	if removed > 0 {
		a.persistLocked()
	}
	return removed
}

// ClearTasks empties the task list.
func (a *Assistant) ClearTasks() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks.Clear()
	a.persistLocked()
}

// ClearHistory resets the conversation to a fresh system prompt.
func (a *Assistant) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Clear(a.systemPromptLocked())
	a.persistLocked()
}

// SetPreference stores one preference and persists the session.
func (a *Assistant) SetPreference(key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.prefs.Set(key, value); err != nil {
		return err
	}
	a.persistLocked()
	return nil
}

// Preferences returns a copy of the current preference map.
func (a *Assistant) Preferences() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prefs.Snapshot()
}

// History 返回对话历史（不含系统提示词）
// History returns the conversation history excluding the system prompt.
func (a *Assistant) History() []chat.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []chat.Message{}
	for _, msg := range a.history.Messages() {
		if msg.Role == chat.RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// SaveSession persists the current session state.
func (a *Assistant) SaveSession() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saveLocked()
}

// Summary renders the conversation summary.
func (a *Assistant) Summary() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summaryLocked()
}

func (a *Assistant) summaryLocked() string {
	if a.history.Len() <= 1 {
		return "No conversation to summarize yet."
	}
	var b strings.Builder
	b.WriteString("📊 Conversation Summary:\n")
	fmt.Fprintf(&b, "- Total messages: %d\n", a.history.Len())
	fmt.Fprintf(&b, "- Your messages: %d\n", a.history.CountByRole(chat.RoleUser))
	fmt.Fprintf(&b, "- My responses: %d\n", a.history.CountByRole(chat.RoleAssistant))
	fmt.Fprintf(&b, "- Active tasks: %d\n", a.tasks.PendingCount())
	fmt.Fprintf(&b, "- Completed tasks: %d\n", a.tasks.Len()-a.tasks.PendingCount())
	fmt.Fprintf(&b, "- Estimated tokens: %d", a.history.EstimatedTokens())
	return b.String()
}

func (a *Assistant) truncateLocked() {
	if a.history.Truncate(a.opts.HistoryMaxLen, 1, a.opts.HistoryKeepRecent) {
		a.logger.Debug("history truncated",
			"user", a.opts.UserName, "kept", a.history.Len())
	}
}

func (a *Assistant) saveLocked() error {
	if a.store == nil {
		return nil
	}
	rec := session.Record{
		History:     a.history.Messages(),
		Tasks:       a.tasks.All(),
		Preferences: a.prefs.Snapshot(),
	}
	if err := a.store.Save(a.sessionKey, rec); err != nil {
		return fmt.Errorf("save session for %q: %w", a.sessionKey, err)
	}
	return nil
}

// persistLocked 尽力持久化：失败只记日志，不回滚内存状态
// persistLocked saves best-effort. A failure is logged and the in-memory
// state stays authoritative.
func (a *Assistant) persistLocked() {
	if err := a.saveLocked(); err != nil {
		a.logger.Warn("session persist failed", "user", a.opts.UserName, "error", err)
	}
}
