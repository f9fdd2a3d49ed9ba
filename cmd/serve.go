package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/forgecrew/taskloop/internal/adminapi"
	"github.com/forgecrew/taskloop/internal/chat"
	"github.com/forgecrew/taskloop/internal/chat/discord"
	"github.com/forgecrew/taskloop/internal/chat/telegram"
	"github.com/forgecrew/taskloop/internal/config"
	"github.com/forgecrew/taskloop/internal/engine"
	"github.com/forgecrew/taskloop/internal/errorpatterns"
	"github.com/forgecrew/taskloop/internal/providers"
	"github.com/forgecrew/taskloop/internal/router"
	"github.com/forgecrew/taskloop/internal/sandbox"
	"github.com/forgecrew/taskloop/internal/scheduler"
	"github.com/forgecrew/taskloop/internal/state"
	"github.com/forgecrew/taskloop/internal/store/postgres"
	"github.com/forgecrew/taskloop/internal/store/sqlite"
	"github.com/forgecrew/taskloop/internal/tools"
)

// runServe wires config, providers, the execution engine, the command
// router, chat channels, the scheduler, and the admin API together and
// blocks until a termination signal arrives — the module's equivalent of
// the teacher's runGateway, trimmed to this module's single-agent,
// two-channel scope (no managed-DB mode, no msgBus/multi-channel fanout,
// no onboarding wizard here — config.json is edited by hand, via env vars,
// or by the separate `onboard` command).
func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !cfg.HasAnyProvider() {
		slog.Error("no AI provider API key configured", "config", cfgPath)
		fmt.Println("Set at least one provider API key (e.g. TASKLOOP_ANTHROPIC_API_KEY) and try again.")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.WatchAndReload(ctx, cfgPath, cfg); err != nil {
		slog.Warn("config hot-reload disabled", "error", err)
	}

	if err := os.MkdirAll(cfg.System.ProjectsDir, 0755); err != nil {
		slog.Error("failed to create projects dir", "dir", cfg.System.ProjectsDir, "error", err)
		os.Exit(1)
	}

	jail := sandbox.NewJailRoot(cfg.Sandbox.JailRoot)
	executor := tools.New(jail)

	store, err := state.Load(cfg.System.StatePath)
	if err != nil {
		slog.Error("failed to load state store", "error", err)
		os.Exit(1)
	}

	providerRouter := providers.NewRouter(buildAgentSpecs(cfg), buildProviderImpls(cfg))
	eng := engine.New(providerRouter, executor, store, errorpatterns.NewRegistry(), cfg.Sandbox.ToCommandPolicy())
	rt := router.New(eng, store, cfg.System.ProjectsDir, cfg.System.Admin)

	sched := scheduler.New(store, cfg.Scheduler.HeartbeatCron, cfg.Scheduler.IdleRoomMinutes)
	if cfg.Scheduler.Enabled {
		sched.Start(ctx)
		defer sched.Stop()
	}

	var hub *adminapi.Hub
	if cfg.AdminAPI.Enabled {
		hub = adminapi.New(cfg.AdminAPI.Token)
		addr := cfg.AdminAPI.Addr
		if addr == "" {
			addr = "127.0.0.1:8787"
		}
		srv := &http.Server{Addr: addr, Handler: hub.Handler()}
		go func() {
			slog.Info("admin API listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("admin API server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			hub.Close()
			_ = srv.Close()
		}()
	}

	startChannels(ctx, cfg, rt)
	startStateMirror(ctx, cfg, store)

	slog.Info("taskloop running", "projects_dir", cfg.System.ProjectsDir)
	<-ctx.Done()
	slog.Info("shutting down")
	if err := store.Save(); err != nil {
		slog.Error("failed to persist state on shutdown", "error", err)
	}
}

// buildAgentSpecs copies AgentsConfig.List into the shape
// providers.Router expects — the two types share every field except
// providers.AgentSpec's Name, filled from the map key, so this is a plain
// copy, not a translation.
func buildAgentSpecs(cfg *config.Config) map[string]providers.AgentSpec {
	out := make(map[string]providers.AgentSpec, len(cfg.Agents.List))
	for name, spec := range cfg.Agents.List {
		out[name] = providers.AgentSpec{
			Name:              name,
			Provider:          spec.Provider,
			Model:             spec.Model,
			RequestsPerMinute: spec.RequestsPerMinute,
			FallbackAgent:     spec.FallbackAgent,
			ModelFallbacks:    spec.ModelFallbacks,
		}
	}
	return out
}

// buildProviderImpls instantiates a providers.Provider for every
// provider with a configured API key. Anthropic gets its own client;
// every other provider in the closed sum (OpenAI, OpenRouter, Gemini,
// Groq, xAI, DashScope) is OpenAI-compatible and served by the same
// generic client, matching the teacher's registerProviders pattern of
// constructing one client per configured credential.
func buildProviderImpls(cfg *config.Config) map[string]providers.Provider {
	impls := make(map[string]providers.Provider)

	if p := cfg.Providers.Anthropic; p.APIKey != "" {
		impls["anthropic"] = providers.NewAnthropicProvider(p.APIKey)
	}
	if p := cfg.Providers.OpenAI; p.APIKey != "" {
		impls["openai"] = providers.NewOpenAIProvider("openai", p.APIKey, p.APIBase, p.Model)
	}
	if p := cfg.Providers.OpenRouter; p.APIKey != "" {
		base := p.APIBase
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		impls["openrouter"] = providers.NewOpenAIProvider("openrouter", p.APIKey, base, p.Model)
	}
	if p := cfg.Providers.Gemini; p.APIKey != "" {
		base := p.APIBase
		if base == "" {
			base = "https://generativelanguage.googleapis.com/v1beta/openai"
		}
		impls["gemini"] = providers.NewOpenAIProvider("gemini", p.APIKey, base, p.Model)
	}
	if p := cfg.Providers.Groq; p.APIKey != "" {
		base := p.APIBase
		if base == "" {
			base = "https://api.groq.com/openai/v1"
		}
		impls["groq"] = providers.NewOpenAIProvider("groq", p.APIKey, base, p.Model)
	}
	if p := cfg.Providers.XAI; p.APIKey != "" {
		base := p.APIBase
		if base == "" {
			base = "https://api.x.ai/v1"
		}
		impls["xai"] = providers.NewOpenAIProvider("xai", p.APIKey, base, p.Model)
	}
	if p := cfg.Providers.DashScope; p.APIKey != "" {
		impls["dashscope"] = providers.NewDashScopeProvider(p.APIKey, p.APIBase, p.Model)
	}

	return impls
}

// startChannels connects every configured chat channel and, for each
// room it binds, dispatches incoming messages into the router in its own
// goroutine — one per Discord channel ID / Telegram chat ID, mirroring
// how the teacher runs one Channel.Start per configured channel instance.
func startChannels(ctx context.Context, cfg *config.Config, rt *router.Router) {
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != "" {
		for _, channelID := range cfg.Channels.Discord.ChannelIDs {
			collab, err := discord.New(cfg.Channels.Discord.Token, channelID)
			if err != nil {
				slog.Error("failed to start discord channel", "channel_id", channelID, "error", err)
				continue
			}
			collab.Listen(func(sender, content string) {
				dispatch(ctx, rt, collab, content, sender)
			})
			go func(c *discord.Collaborator) {
				<-ctx.Done()
				c.Close()
			}(collab)
			slog.Info("discord channel connected", "channel_id", channelID)
		}
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		for _, chatIDStr := range cfg.Channels.Telegram.ChatIDs {
			chatID, err := parseChatID(chatIDStr)
			if err != nil {
				slog.Error("invalid telegram chat id", "chat_id", chatIDStr, "error", err)
				continue
			}
			collab, err := telegram.New(cfg.Channels.Telegram.Token, chatID)
			if err != nil {
				slog.Error("failed to start telegram channel", "chat_id", chatIDStr, "error", err)
				continue
			}
			go func(c *telegram.Collaborator) {
				if err := c.Listen(ctx, func(sender, content string) {
					dispatch(ctx, rt, c, content, sender)
				}); err != nil {
					slog.Error("telegram polling stopped", "error", err)
				}
			}(collab)
			slog.Info("telegram channel connected", "chat_id", chatIDStr)
		}
	}
}

// dispatch runs one router.Route call in its own goroutine so a
// long-running task in one room never blocks message delivery in
// another, and logs (rather than panics on) routing errors since a
// single bad message must not take a channel listener down.
func dispatch(ctx context.Context, rt *router.Router, collab chat.Collaborator, content, sender string) {
	go func() {
		if err := rt.Route(ctx, collab, content, sender); err != nil {
			slog.Error("route failed", "room", collab.RoomID(), "error", err)
		}
	}()
}

func parseChatID(s string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(s, "%d", &id)
	return id, err
}

// roomMirror is satisfied by both internal/store/postgres.Mirror and
// internal/store/sqlite.Mirror, letting startStateMirror stay agnostic
// to which backend is configured.
type roomMirror interface {
	EnsureSchema(ctx context.Context) error
	Save(ctx context.Context, roomID string, data []byte) error
}

// startStateMirror periodically write-throughs every room's state into
// whichever database mirror is configured (Postgres preferred when both
// TASKLOOP_POSTGRES_DSN and a sqlite_path are set). The file store
// remains canonical regardless — this is strictly an additional copy
// for operators who want to query room state externally or restore it
// on a fresh disk.
func startStateMirror(ctx context.Context, cfg *config.Config, store *state.Store) {
	if !cfg.StateMirror.Enabled {
		return
	}

	var mirror roomMirror
	if dsn := os.Getenv("TASKLOOP_POSTGRES_DSN"); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			slog.Error("state mirror: failed to open postgres", "error", err)
			return
		}
		pgMirror := postgres.New(db)
		if err := pgMirror.EnsureSchema(ctx); err != nil {
			slog.Error("state mirror: failed to ensure postgres schema", "error", err)
			db.Close()
			return
		}
		mirror = pgMirror
		go func() { <-ctx.Done(); db.Close() }()
		slog.Info("state mirror enabled", "backend", "postgres")
	} else if cfg.StateMirror.SQLitePath != "" {
		sqliteMirror, err := sqlite.Open(ctx, config.ExpandHome(cfg.StateMirror.SQLitePath))
		if err != nil {
			slog.Error("state mirror: failed to open sqlite", "error", err)
			return
		}
		mirror = sqliteMirror
		go func() { <-ctx.Done(); sqliteMirror.Close() }()
		slog.Info("state mirror enabled", "backend", "sqlite", "path", cfg.StateMirror.SQLitePath)
	} else {
		slog.Warn("state mirror enabled but no backend configured (set TASKLOOP_POSTGRES_DSN or state_mirror.sqlite_path)")
		return
	}

	interval := time.Duration(cfg.StateMirror.IntervalSecond) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rooms, err := store.SnapshotRooms()
				if err != nil {
					slog.Error("state mirror: snapshot failed", "error", err)
					continue
				}
				for roomID, data := range rooms {
					if err := mirror.Save(ctx, roomID, data); err != nil {
						slog.Error("state mirror: save failed", "room", roomID, "error", err)
					}
				}
			}
		}
	}()
}
