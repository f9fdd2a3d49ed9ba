package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/titanous/json5"

	"github.com/forgecrew/taskloop/internal/sandbox"
)

// Default returns a Config with sensible defaults, matching the teacher's
// Default() shape but scoped to this module's agents/channels/sandbox.
func Default() *Config {
	return &Config{
		Agents: AgentsConfig{
			Default: "developer",
			List: map[string]AgentSpec{
				"developer": {Provider: "anthropic", Model: "claude-sonnet-4-5-20250929"},
			},
		},
		Sandbox: SandboxConfig{
			JailRoot: ExpandHome("~/.taskloop/projects"),
			Default:  "ask",
		},
		System: SystemConfig{
			ProjectsDir: ExpandHome("~/.taskloop/projects"),
			StatePath:   ExpandHome("~/.taskloop/state.json"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			HeartbeatCron:   "*/5 * * * *",
			IdleRoomMinutes: 30,
		},
		AdminAPI: AdminAPIConfig{
			Addr: "127.0.0.1:8787",
		},
	}
}

// Load reads config from a JSON/JSON5 file, then overlays env vars. A
// missing file is not an error — Load returns Default() with env
// overrides applied, matching the teacher's Load behavior.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config; env vars take
// precedence over file values, matching the teacher's own convention of
// never persisting secrets to config.json.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("TASKLOOP_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("TASKLOOP_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("TASKLOOP_OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("TASKLOOP_GEMINI_API_KEY", &c.Providers.Gemini.APIKey)
	envStr("TASKLOOP_GROQ_API_KEY", &c.Providers.Groq.APIKey)
	envStr("TASKLOOP_XAI_API_KEY", &c.Providers.XAI.APIKey)
	envStr("TASKLOOP_DASHSCOPE_API_KEY", &c.Providers.DashScope.APIKey)

	envStr("TASKLOOP_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("TASKLOOP_DISCORD_TOKEN", &c.Channels.Discord.Token)
	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}
	if c.Channels.Discord.Token != "" {
		c.Channels.Discord.Enabled = true
	}

	envStr("TASKLOOP_PROJECTS_DIR", &c.System.ProjectsDir)
	envStr("TASKLOOP_STATE_PATH", &c.System.StatePath)
	envStr("TASKLOOP_JAIL_ROOT", &c.Sandbox.JailRoot)

	envStr("TASKLOOP_ADMIN_API_TOKEN", &c.AdminAPI.Token)
	envStr("TASKLOOP_ADMIN_API_ADDR", &c.AdminAPI.Addr)

	envStr("TASKLOOP_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	if v := os.Getenv("TASKLOOP_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
}

// ApplyEnvOverrides re-applies environment variable overrides onto the
// config. Call after a hot reload to restore runtime secrets env
// intentionally keeps out of config.json.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyEnvOverrides()
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// WatchAndReload watches path for changes and hot-reloads the config into
// cfg via ReplaceFrom on every write event, matching spec.md §10's "config
// loader hot-reload on SIGHUP" requirement with a file-watch trigger
// instead (fsnotify rather than a signal handler, since a signal-based
// reload still has to re-read the same file — watching it directly skips
// the indirection). Runs until ctx is cancelled; watch-setup errors are
// returned, but a failed individual reload is only logged, since losing
// one reload shouldn't kill the watcher.
func WatchAndReload(ctx context.Context, path string, cfg *Config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, err := Load(path)
				if err != nil {
					slog.Error("config reload failed", "path", path, "error", err)
					continue
				}
				cfg.ReplaceFrom(reloaded)
				slog.Info("config reloaded", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config watcher error", "error", err)
			}
		}
	}()

	return nil
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}

// ToCommandPolicy converts SandboxConfig to the sandbox.CommandPolicy the
// engine and router are constructed with.
func (sc SandboxConfig) ToCommandPolicy() sandbox.CommandPolicy {
	return sandbox.CommandPolicy{
		Default: sc.Default,
		Allowed: sc.Allowed,
		Ask:     sc.Ask,
		Blocked: sc.Blocked,
	}
}
