package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/fitbuddy/internal/api"
	"github.com/kalambet/fitbuddy/internal/chat"
	"github.com/kalambet/fitbuddy/internal/composer"
	"github.com/kalambet/fitbuddy/internal/config"
	"github.com/kalambet/fitbuddy/internal/journal"
	"github.com/kalambet/fitbuddy/internal/llm"
	"github.com/kalambet/fitbuddy/internal/ollama"
	"github.com/kalambet/fitbuddy/internal/profile"
	"github.com/kalambet/fitbuddy/internal/proxy"
	"github.com/kalambet/fitbuddy/internal/session"
)

const shutdownTimeout = 5 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Fit Buddy HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve Fit Buddy tools over MCP (stdio transport)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

// loadDotEnv reads .env from the working directory. A missing file is fine.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	err := lvl.UnmarshalText([]byte(level))
	if err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	if err != nil {
		slog.Warn("unknown log level, using info", "value", level)
	}
}

// app is the wired object graph shared by start and mcp.
type app struct {
	profiles *profile.MemoryStore
	sessions *session.Store
	chat     *chat.Orchestrator
	journal  *journal.Journal // nil when storage.journal_enabled is false
}

type namedCompleter interface {
	llm.Completer
	Model() string
}

func newModel(cfg config.LLMConfig) namedCompleter {
	opts := llm.Options{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: float32(cfg.Temperature),
		Timeout:     cfg.TimeoutDuration(),
	}
	switch cfg.Provider {
	case config.ProviderOpenRouter:
		return proxy.NewClient(opts)
	case config.ProviderOllama:
		return ollama.New(opts)
	}
	return llm.NewOpenAI(opts)
}

func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{profiles: profile.NewMemoryStore()}
	a.sessions = session.NewStore(composer.New(a.profiles), cfg.Session.MaxTurns)

	model := newModel(cfg.LLM)
	if local, ok := model.(*ollama.Client); ok {
		// Progress goes to stderr; stdout carries the MCP protocol.
		if err := ollama.EnsureReady(ctx, local, os.Stderr); err != nil {
			return nil, err
		}
	}
	slog.Info("model backend ready", "provider", cfg.LLM.Provider, "model", model.Model())

	opts := []chat.Option{chat.WithLogger(slog.Default())}
	if cfg.Storage.JournalEnabled {
		j, err := journal.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening meal journal: %w", err)
		}
		a.journal = j
		opts = append(opts, chat.WithMealRecorder(j))
		slog.Info("meal journal enabled", "data_dir", cfg.Storage.DataDir)
	}

	a.chat = chat.New(a.sessions, model, opts...)
	return a, nil
}

func (a *app) mealJournal() api.MealJournal {
	if a.journal == nil {
		return nil
	}
	return a.journal
}

func (a *app) close() {
	if a.journal == nil {
		return
	}
	if err := a.journal.Close(); err != nil {
		slog.Warn("closing meal journal", "error", err)
	}
}

func loadServerConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	setupLogging(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "fitbuddy version %s\n", version)

	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	var limiter *api.RateLimiter
	if cfg.Server.ChatRatePerSec > 0 {
		limiter = api.NewRateLimiter(cfg.Server.ChatRatePerSec, cfg.Server.ChatBurst)
	}

	handler := api.NewHandler(api.Deps{
		Chat:           a.chat,
		Profiles:       a.profiles,
		Sessions:       a.sessions,
		Meals:          a.mealJournal(),
		AllowedOrigins: cfg.Server.Origins(),
		ChatLimiter:    limiter,
		TrustProxy:     cfg.Server.TrustProxy,
		Logger:         slog.Default(),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("fitbuddy listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runMCP() error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Chat:     a.chat,
		Profiles: a.profiles,
		Sessions: a.sessions,
		Meals:    a.mealJournal(),
		Version:  version,
	})

	slog.Info("MCP server started (stdio transport)")
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}
