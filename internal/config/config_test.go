package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agents.Default != "developer" {
		t.Fatalf("expected default agent %q, got %q", "developer", cfg.Agents.Default)
	}
	if cfg.Sandbox.Default != "ask" {
		t.Fatalf("expected default sandbox verdict %q, got %q", "ask", cfg.Sandbox.Default)
	}
}

func TestLoad_JSON5File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	contents := `{
		// trailing commas and comments are fine with json5
		agents: {
			default: "developer",
			list: {
				developer: { provider: "anthropic", model: "claude-sonnet-4-5-20250929" },
			},
		},
		sandbox: { jail_root: "/tmp/projects", default: "allow" },
	}`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sandbox.JailRoot != "/tmp/projects" {
		t.Fatalf("expected jail_root to be parsed, got %q", cfg.Sandbox.JailRoot)
	}
	if cfg.Agents.List["developer"].Provider != "anthropic" {
		t.Fatalf("expected agent list to be parsed, got %+v", cfg.Agents.List)
	}
}

func TestLoad_EnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("TASKLOOP_ANTHROPIC_API_KEY", "sk-test-123")
	t.Setenv("TASKLOOP_TELEGRAM_TOKEN", "tg-token")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.Anthropic.APIKey != "sk-test-123" {
		t.Fatalf("expected env override to set anthropic api key, got %q", cfg.Providers.Anthropic.APIKey)
	}
	if !cfg.Channels.Telegram.Enabled || cfg.Channels.Telegram.Token != "tg-token" {
		t.Fatalf("expected telegram to be enabled with env token, got %+v", cfg.Channels.Telegram)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Sandbox.JailRoot = "/srv/projects"
	cfg.Agents.List["reviewer"] = AgentSpec{Provider: "openai", Model: "gpt-5"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if reloaded.Sandbox.JailRoot != "/srv/projects" {
		t.Fatalf("expected jail_root to round-trip, got %q", reloaded.Sandbox.JailRoot)
	}
	if reloaded.Agents.List["reviewer"].Model != "gpt-5" {
		t.Fatalf("expected reviewer agent to round-trip, got %+v", reloaded.Agents.List["reviewer"])
	}
}

func TestToCommandPolicyMatchesSandboxConfig(t *testing.T) {
	sc := SandboxConfig{
		Default: "ask",
		Allowed: []string{"ls", "cat"},
		Ask:     []string{"rm"},
		Blocked: []string{"sudo"},
	}
	policy := sc.ToCommandPolicy()
	if policy.Default != "ask" || len(policy.Allowed) != 2 || len(policy.Ask) != 1 || len(policy.Blocked) != 1 {
		t.Fatalf("unexpected policy conversion: %+v", policy)
	}
}

func TestReplaceFromAndSnapshot(t *testing.T) {
	cfg := Default()
	other := Default()
	other.Sandbox.JailRoot = "/new/root"

	cfg.ReplaceFrom(other)
	if cfg.Sandbox.JailRoot != "/new/root" {
		t.Fatalf("expected ReplaceFrom to overwrite sandbox config, got %q", cfg.Sandbox.JailRoot)
	}

	snap := cfg.Snapshot()
	if snap.Sandbox.JailRoot != "/new/root" {
		t.Fatalf("expected snapshot to reflect replaced config, got %q", snap.Sandbox.JailRoot)
	}
}

func TestHasAnyProvider(t *testing.T) {
	cfg := Default()
	if cfg.HasAnyProvider() {
		t.Fatalf("expected no providers configured by default")
	}
	cfg.Providers.Groq.APIKey = "gsk-test"
	if !cfg.HasAnyProvider() {
		t.Fatalf("expected HasAnyProvider to report true once a key is set")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	if got := ExpandHome("~/projects"); got != filepath.Join(home, "projects") && got != home+"/projects" {
		t.Fatalf("expected ~ expansion under home dir, got %q", got)
	}
	if got := ExpandHome("/already/absolute"); got != "/already/absolute" {
		t.Fatalf("expected non-tilde path to pass through unchanged, got %q", got)
	}
}
