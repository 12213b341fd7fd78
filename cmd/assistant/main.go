package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"assistant/internal/assistant"
	"assistant/internal/config"
	"assistant/internal/provider"
	"assistant/internal/repl"
	"assistant/internal/server"
	"assistant/internal/session"
)

func main() {
	var (
		configPath string
		serve      bool
		addr       string
		user       string
		debug      bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config JSON/JSONC")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP API instead of the interactive loop")
	flag.StringVar(&addr, "addr", "", "HTTP listen address override")
	flag.StringVar(&user, "user", "", "User identity override")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(user) != "" {
		cfg.Assistant.DefaultUser = strings.TrimSpace(user)
	}
	if strings.TrimSpace(addr) != "" {
		cfg.Server.Addr = strings.TrimSpace(addr)
	}

	// 缺少凭证是配置错误，立即退出 / a missing credential is fatal at startup
	prov, err := provider.NewOpenAIClient(provider.OpenAIConfig{
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey,
		Model:     cfg.Provider.Model,
		TimeoutMS: cfg.Provider.TimeoutMS,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init completion provider failed: %v\n", err)
		fmt.Fprintln(os.Stderr, "set ASSISTANT_API_KEY or GROQ_API_KEY and try again")
		os.Exit(1)
	}

	store, err := newSessionStore(cfg.Storage, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init session storage failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	opts := assistant.OptionsFromConfig(cfg)

	if serve {
		runServer(cfg, opts, prov, store, logger)
		return
	}
	runREPL(cfg, opts, prov, store, logger)
}

func newSessionStore(cfg config.StorageConfig, logger *slog.Logger) (session.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return session.NewSQLiteStore(filepath.Join(cfg.BaseDir, "sessions.db"), logger)
	default:
		return session.NewFileStore(cfg.BaseDir, logger)
	}
}

func runServer(cfg config.Config, opts assistant.Options, prov *provider.OpenAIClient, store session.Store, logger *slog.Logger) {
	registry := assistant.NewRegistry(opts, prov, store, logger)
	srv := server.NewServer(cfg.Server, registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
			os.Exit(1)
		}
	}
}

func runREPL(cfg config.Config, opts assistant.Options, prov *provider.OpenAIClient, store session.Store, logger *slog.Logger) {
	a := assistant.New(opts, prov, store, logger)
	input := repl.NewLineInput(filepath.Join(cfg.Storage.BaseDir, "repl.history"))

	styled := term.IsTerminal(int(os.Stdout.Fd()))
	width := 80
	if styled {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	loop := repl.New(a, input, os.Stdout, repl.NewRenderer(styled, width))
	if err := loop.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "interactive loop failed: %v\n", err)
		os.Exit(1)
	}
}
