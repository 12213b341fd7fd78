package assistant

import (
	"log/slog"
	"strings"
	"sync"

	"assistant/internal/provider"
	"assistant/internal/session"
)

// Registry 按用户身份索引助手实例；同一用户的所有请求共享一个实例，
// 不同用户的会话互不干扰。
// Registry hands out assistant instances keyed by user identity. All requests
// for the same user share one instance (and its mutex); distinct users get
// isolated sessions.
type Registry struct {
	mu       sync.Mutex
	opts     Options
	provider provider.Provider
	store    session.Store
	logger   *slog.Logger
	byUser   map[string]*Assistant
}

// NewRegistry creates a registry. opts.UserName serves as the default
// identity when a caller does not name one.
func NewRegistry(opts Options, prov provider.Provider, store session.Store, logger *slog.Logger) *Registry {
	opts.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		opts:     opts,
		provider: prov,
		store:    store,
		logger:   logger,
		byUser:   map[string]*Assistant{},
	}
}

// Get 返回该用户的助手实例，首次访问时创建并恢复其会话
// Get returns the assistant for the user, creating it (and restoring the
// persisted session) on first access. A blank user maps to the default.
func (r *Registry) Get(userName string) *Assistant {
	key := strings.TrimSpace(userName)
	if key == "" {
		key = r.opts.UserName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byUser[key]; ok {
		return a
	}
	opts := r.opts
	opts.UserName = key
	a := New(opts, r.provider, r.store, r.logger)
	r.byUser[key] = a
	return a
}

// Default returns the assistant for the configured default user.
func (r *Registry) Default() *Assistant {
	return r.Get("")
}
