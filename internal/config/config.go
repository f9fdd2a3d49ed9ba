// Package config loads and holds the control plane's configuration tree:
// agents/providers, chat channels, the sandbox command policy, the admin
// allowlist, and the scheduler/persistence knobs. Adapted from the
// teacher's internal/config/config.go, trimmed to this module's scope
// (a chat-driven coding agent, not a general-purpose multi-channel
// assistant gateway) but keeping its JSON shape, mutex-guarded Config
// struct, and FlexibleStringSlice verbatim.
package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON, kept
// verbatim from the teacher since other config consumers (allow_from
// lists, admin allowlists) are just as likely to be handed numeric chat
// IDs as strings.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the control plane.
type Config struct {
	Agents    AgentsConfig    `json:"agents"`
	Providers ProvidersConfig `json:"providers"`
	Channels  ChannelsConfig  `json:"channels"`
	Sandbox   SandboxConfig   `json:"sandbox"`
	System    SystemConfig    `json:"system"`
	Scheduler   SchedulerConfig   `json:"scheduler,omitempty"`
	AdminAPI    AdminAPIConfig    `json:"admin_api,omitempty"`
	Telemetry   TelemetryConfig   `json:"telemetry,omitempty"`
	StateMirror StateMirrorConfig `json:"state_mirror,omitempty"`

	mu sync.RWMutex
}

// SystemConfig is the project/state-store/admin-allowlist surface spec.md
// §6 describes as "unchanged from spec.md" — the home for the knobs the
// router and engine both read at startup.
type SystemConfig struct {
	ProjectsDir  string              `json:"projects_dir"`          // root directory all `.new`/`.project` operations are jailed under
	StatePath    string              `json:"state_path"`            // JSON file backing internal/state.Store
	Admin        FlexibleStringSlice `json:"admin"`                 // sender ids allowed to run `,<command>` (the admin WebSocket checks AdminAPI.Token instead)
	AllowedHosts FlexibleStringSlice `json:"allowed_hosts,omitempty"` // loaded and saved only; no package reads it
}

// AgentsConfig contains agent defaults and per-agent overrides, trimmed
// to the fields internal/providers.AgentSpec/Router actually read —
// the teacher's much larger AgentDefaults (subagents, memory, context
// pruning, heartbeat, bootstrap truncation) governs a general-purpose
// chat assistant this module's spec.md explicitly excludes.
type AgentsConfig struct {
	Default string               `json:"default"` // default agent name ("developer"); the command router always passes "developer" to RunTask and does not read this field
	List    map[string]AgentSpec `json:"list"`
}

// AgentSpec binds one named agent to a provider/model and its retry
// behavior, matching internal/providers.AgentSpec field-for-field (minus
// its Name, which is the map key here) so cmd/serve.go's buildAgentSpecs
// can copy it over directly.
type AgentSpec struct {
	Provider          string   `json:"provider"`
	Model             string   `json:"model"`
	RequestsPerMinute int      `json:"requests_per_minute,omitempty"`
	FallbackAgent     string   `json:"fallback_agent,omitempty"`
	ModelFallbacks    []string `json:"model_fallbacks,omitempty"`
}

// ProvidersConfig maps provider name to its credentials, covering the
// closed sum of spec.md §4.4 (Anthropic, OpenAI, Gemini, Groq, xAI) plus
// OpenRouter and DashScope, both served by the same OpenAI-compatible
// client the teacher's openai.go already generalizes over.
type ProvidersConfig struct {
	Anthropic  ProviderConfig `json:"anthropic"`
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	Gemini     ProviderConfig `json:"gemini"`
	Groq       ProviderConfig `json:"groq"`
	XAI        ProviderConfig `json:"xai"`
	DashScope  ProviderConfig `json:"dashscope,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base,omitempty"`
	Model   string `json:"model,omitempty"` // provider-level default model, overridden per-agent
}

// HasAnyProvider reports whether at least one provider has credentials.
func (c *Config) HasAnyProvider() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := c.Providers
	return p.Anthropic.APIKey != "" || p.OpenAI.APIKey != "" || p.OpenRouter.APIKey != "" ||
		p.Gemini.APIKey != "" || p.Groq.APIKey != "" || p.XAI.APIKey != "" || p.DashScope.APIKey != ""
}

// ChannelsConfig contains per-channel configuration — only the two chat
// transports this module actually binds (internal/chat/discord,
// internal/chat/telegram); the teacher's Slack/WhatsApp/Zalo/Feishu
// variants have no ChatCollaborator implementation here (see DESIGN.md).
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled bool                `json:"enabled"`
	Token   string              `json:"token"`
	ChatIDs FlexibleStringSlice `json:"chat_ids"` // rooms this instance listens on
}

type DiscordConfig struct {
	Enabled    bool                `json:"enabled"`
	Token      string              `json:"token"`
	ChannelIDs FlexibleStringSlice `json:"channel_ids"`
}

// SandboxConfig is the JSON shape of spec.md §4.1's {default, allowed[],
// ask[], blocked[]} command policy, plus the jail root every project
// operation is validated against.
type SandboxConfig struct {
	JailRoot string   `json:"jail_root"`
	Default  string   `json:"default,omitempty"` // "allow", "ask" (default), or "block"
	Allowed  []string `json:"allowed,omitempty"`
	Ask      []string `json:"ask,omitempty"`
	Blocked  []string `json:"blocked,omitempty"`
}

// SchedulerConfig configures internal/scheduler's cron-style heartbeat
// sweep (spec.md §10's added "Scheduling" concern).
type SchedulerConfig struct {
	Enabled         bool   `json:"enabled"`
	HeartbeatCron   string `json:"heartbeat_cron,omitempty"`   // gronx expression, default "*/5 * * * *"
	IdleRoomMinutes int    `json:"idle_room_minutes,omitempty"` // last-request timestamps older than this are cleared by the sweep (default 30); cooldowns use a fixed 15-minute age
}

// AdminAPIConfig configures internal/adminapi's operator WebSocket stream.
type AdminAPIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // listen address, default "127.0.0.1:8787"
	Token   string `json:"-"`              // bearer token, env-only (never persisted)
}

// TelemetryConfig mirrors the teacher's own TelemetryConfig shape. It is
// loaded with the rest of the config, but no package reads it: this
// module exports no OpenTelemetry spans.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	Protocol    string `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool   `json:"insecure,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
}

// StateMirrorConfig configures an optional write-through mirror of the
// State Store into a real database (internal/store/postgres or
// internal/store/sqlite) — the file store at System.StatePath stays
// canonical either way. At most one backend is used at a time; Postgres
// is preferred when both are configured.
type StateMirrorConfig struct {
	Enabled        bool   `json:"enabled,omitempty"`
	IntervalSecond int    `json:"interval_seconds,omitempty"` // default 30
	SQLitePath     string `json:"sqlite_path,omitempty"`      // empty = Postgres via TASKLOOP_POSTGRES_DSN
}

// ReplaceFrom copies all data fields from src into c, preserving c's
// mutex — used by WatchAndReload's file-watch hot-reload path.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Agents = src.Agents
	c.Providers = src.Providers
	c.Channels = src.Channels
	c.Sandbox = src.Sandbox
	c.System = src.System
	c.Scheduler = src.Scheduler
	c.AdminAPI = src.AdminAPI
	c.Telemetry = src.Telemetry
	c.StateMirror = src.StateMirror
}

// Snapshot returns a copy of the config tree safe to read without holding
// the lock further (mirrors the teacher's read-then-release pattern for
// hot-reloadable config).
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		Agents:    c.Agents,
		Providers: c.Providers,
		Channels:  c.Channels,
		Sandbox:   c.Sandbox,
		System:    c.System,
		Scheduler:   c.Scheduler,
		AdminAPI:    c.AdminAPI,
		Telemetry:   c.Telemetry,
		StateMirror: c.StateMirror,
	}
}
